package pinctrl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRun(t *testing.T, out string, err error) *[][]string {
	t.Helper()
	var calls [][]string
	orig := run
	run = func(args ...string) ([]byte, error) {
		calls = append(calls, args)
		return []byte(out), err
	}
	t.Cleanup(func() { run = orig })
	return &calls
}

const getOutput = `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 2: no    pu | -- // GPIO2 = none
 5: ip    pn | lo // GPIO5 = input
17: op dh pn | hi // GPIO17 = output
22: op dl pn | lo // GPIO22 = output
`

func TestGet_All(t *testing.T) {
	calls := stubRun(t, getOutput, nil)

	states, err := Get()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"get"}}, *calls)
	require.Len(t, states, 5)

	tests := []struct {
		pin   int
		want  State
		out   bool
		level bool
	}{
		{pin: 2, want: State{Pin: 2, Mode: "no", Pull: "pu", Level: "--", Label: "GPIO2 = none"}},
		{pin: 5, want: State{Pin: 5, Mode: "ip", Pull: "pn", Level: "lo", Label: "GPIO5 = input"}},
		{pin: 17, want: State{Pin: 17, Mode: "op", Pull: "pn", Drive: "dh", Level: "hi", Label: "GPIO17 = output"}, out: true, level: true},
		{pin: 22, want: State{Pin: 22, Mode: "op", Pull: "pn", Drive: "dl", Level: "lo", Label: "GPIO22 = output"}, out: true},
	}
	for _, tc := range tests {
		got := states[tc.pin]
		assert.Equal(t, tc.want, got, "pin %d", tc.pin)
		assert.Equal(t, tc.out, got.IsOutput(), "pin %d", tc.pin)
		assert.Equal(t, tc.level, got.High(), "pin %d", tc.pin)
	}
}

func TestGet_Pins(t *testing.T) {
	calls := stubRun(t, getOutput, nil)

	states, err := Get(17, 22)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"get", "17,22"}}, *calls)
	assert.True(t, states[17].Active(true))
	assert.True(t, states[22].Active(false))

	_, err = Get(23)
	assert.ErrorContains(t, err, "pin 23 not found")
}

func TestGet_CommandFails(t *testing.T) {
	stubRun(t, "pinctrl: command not found", errors.New("exit status 127"))

	_, err := Get()
	assert.ErrorContains(t, err, "command not found")
}

func TestLevel(t *testing.T) {
	tests := []struct {
		out     string
		want    bool
		wantErr bool
	}{
		{out: "1\n", want: true},
		{out: "0", want: false},
		{out: "\n1\n", want: true},
		{out: "x", wantErr: true},
	}
	for _, tc := range tests {
		calls := stubRun(t, tc.out, nil)
		got, err := Level(6)
		assert.Equal(t, [][]string{{"lev", "6"}}, *calls)
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "output %q", tc.out)
	}
}

func TestSet(t *testing.T) {
	calls := stubRun(t, "", nil)

	require.NoError(t, Set(22, Output, NoPull, Drive(false)))
	require.NoError(t, Set(17, Drive(true)))
	assert.Equal(t, [][]string{{"set", "22", "op", "pn", "dl"}, {"set", "17", "dh"}}, *calls)
}

func TestSet_Error(t *testing.T) {
	stubRun(t, "permission denied", errors.New("exit status 1"))

	err := Set(22, Output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
