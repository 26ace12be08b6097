package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

func TestShutdown_DeactivatesAllRelays(t *testing.T) {
	io := gpio.NewMemory()
	require.NoError(t, io.Configure(17, gpio.Output))
	require.NoError(t, io.Configure(23, gpio.Output))
	io.Set(17, true)
	io.Set(23, false)

	err := Shutdown(io, map[string]model.GPIOPin{
		"boiler": {Number: 17, ActiveHigh: true},
		"bath":   {Number: 23, ActiveHigh: false},
	})
	require.NoError(t, err)

	boiler, _ := io.Read(17)
	bath, _ := io.Read(23)
	assert.False(t, boiler)
	assert.True(t, bath)
}

type failingIO struct {
	*gpio.Memory
	bad int
}

func (f failingIO) Write(pin int, level bool) error {
	if pin == f.bad {
		return errors.New("pinctrl: exit status 1")
	}
	return f.Memory.Write(pin, level)
}

func TestShutdown_ContinuesPastFailures(t *testing.T) {
	io := failingIO{Memory: gpio.NewMemory(), bad: 22}
	err := Shutdown(io, map[string]model.GPIOPin{
		"living": {Number: 22, ActiveHigh: true},
		"boiler": {Number: 17, ActiveHigh: true},
	})

	assert.ErrorContains(t, err, "exit status 1")
	assert.Equal(t, 1, io.Writes(17))
}
