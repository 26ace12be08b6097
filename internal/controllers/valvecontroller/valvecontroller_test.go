package valvecontroller

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		demand   model.Mode
		value    float64
		duration int
		cycle    int
		want     model.Mode
		onTime   int
	}{
		{"zero control value", model.ModeHeat, 0, 120, 0, model.ModeOff, 0},
		{"full control value at end of window", model.ModeHeat, 1, 120, 119, model.ModeHeat, 120},
		{"demand off overrides", model.ModeOff, 1, 120, 0, model.ModeOff, 120},
		{"inside on segment", model.ModeHeat, 0.5, 120, 59, model.ModeHeat, 60},
		{"first off step", model.ModeHeat, 0.5, 120, 60, model.ModeOff, 60},
		{"below one step", model.ModeHeat, 0.004, 120, 0, model.ModeOff, 0},
		{"cool demand asserts heat", model.ModeCool, 0.25, 4, 0, model.ModeHeat, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mode, onTime := decide(tc.demand, tc.value, tc.duration, tc.cycle)
			assert.Equal(t, tc.want, mode)
			assert.Equal(t, tc.onTime, onTime)
		})
	}
}

func TestDecide_DutyCycleProperty(t *testing.T) {
	for _, duration := range []int{1, 4, 7, 120} {
		for step := 0; step <= 100; step++ {
			c := float64(step) / 100
			want := int(math.Floor(c * float64(duration)))

			on := 0
			for cycle := 0; cycle < duration; cycle++ {
				mode, _ := decide(model.ModeHeat, c, duration, cycle)
				if mode == model.ModeHeat {
					assert.Less(t, cycle, want, "ON decisions must lead the window (D=%d c=%v)", duration, c)
					on++
				}

				off, _ := decide(model.ModeOff, c, duration, cycle)
				assert.Equal(t, model.ModeOff, off)
			}
			assert.Equal(t, want, on, "D=%d c=%v", duration, c)
		}
	}
}

func newZone(t *testing.T, sampling, cycleMinutes int) *zone.Zone {
	t.Helper()
	return zone.New(config.Zone{
		Name:             "living",
		SensorPath:       "sensors/living",
		InputGPIO:        5,
		OutputGPIO:       22,
		SamplingInterval: sampling,
		CyclePeriod:      cycleMinutes,
	})
}

func TestTick_ScenarioFourSteps(t *testing.T) {
	ctx := context.Background()
	z := newZone(t, 15, 1)
	require.Equal(t, 4, z.Duration)

	st := store.NewMemory()
	io := gpio.NewMemory()
	require.NoError(t, io.Configure(22, gpio.Output))
	require.NoError(t, st.Set(ctx, "sensors/living/target_heatingcooling_state", "1"))

	c := New(z, st, io, nil)
	var counts []int
	for _, value := range []float64{0.25, 0.5, 0.75, 1.0} {
		require.NoError(t, st.Set(ctx, "sensors/living/control_value", store.EncodeControlValue(value)))
		on := 0
		for i := 0; i < z.Duration; i++ {
			c.Tick(ctx)
			level, err := io.Read(22)
			require.NoError(t, err)
			if level {
				on++
			}
		}
		counts = append(counts, on)
		assert.Equal(t, 0, z.Cycle(), "cycle must return to its start after D iterations")
	}

	assert.Equal(t, []int{1, 2, 3, 4}, counts)
}

func TestTick_PublishesStateAndWraps(t *testing.T) {
	ctx := context.Background()
	z := newZone(t, 15, 1)
	st := store.NewMemory()
	io := gpio.NewMemory()
	require.NoError(t, st.Set(ctx, "sensors/living/target_heatingcooling_state", "1"))
	require.NoError(t, st.Set(ctx, "sensors/living/control_value", "0.5"))
	sub := st.Subscribe("sensors/living/heating_cooling_state")

	c := New(z, st, io, nil)
	var published []string
	var cycles []int
	for i := 0; i < 5; i++ {
		c.Tick(ctx)
		published = append(published, <-sub)
		cycles = append(cycles, z.Cycle())
	}

	assert.Equal(t, []string{"1", "1", "0", "0", "1"}, published)
	assert.Equal(t, []int{1, 2, 3, 0, 1}, cycles)
	assert.Equal(t, model.ModeHeat, z.Relay())
}

func TestTick_ActiveLowPolarity(t *testing.T) {
	ctx := context.Background()
	z := zone.New(config.Zone{Name: "bath", SensorPath: "sensors/bath", OutputGPIO: 23, ActiveLow: true, SamplingInterval: 5, CyclePeriod: 10})
	st := store.NewMemory()
	io := gpio.NewMemory()
	require.NoError(t, st.Set(ctx, "sensors/bath/target_heatingcooling_state", "1"))
	require.NoError(t, st.Set(ctx, "sensors/bath/control_value", "1"))

	New(z, st, io, nil).Tick(ctx)

	level, err := io.Read(23)
	require.NoError(t, err)
	assert.False(t, level, "active-low relay is energised by a low level")
	assert.Equal(t, 1, io.Writes(23))
}

func TestTick_SkipsWhenInputsMissing(t *testing.T) {
	tests := []struct {
		name   string
		demand string
		value  string
	}{
		{name: "no demand", value: "0.5"},
		{name: "no control value", demand: "1"},
		{name: "invalid demand", demand: "7", value: "0.5"},
		{name: "invalid control value", demand: "1", value: "lots"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			z := newZone(t, 5, 10)
			z.RecordValve(3, model.ModeHeat)
			st := store.NewMemory()
			io := gpio.NewMemory()
			if tc.demand != "" {
				require.NoError(t, st.Set(ctx, "sensors/living/target_heatingcooling_state", tc.demand))
			}
			if tc.value != "" {
				require.NoError(t, st.Set(ctx, "sensors/living/control_value", tc.value))
			}

			New(z, st, io, nil).Tick(ctx)

			assert.Equal(t, 0, io.Writes(22))
			assert.Equal(t, 3, z.Cycle())
			assert.Equal(t, model.ModeHeat, z.Relay())
			_, err := st.Get(ctx, "sensors/living/heating_cooling_state")
			assert.ErrorIs(t, err, store.ErrMissing)
		})
	}
}

type mockIO struct {
	mock.Mock
}

func (m *mockIO) Configure(pin int, dir gpio.Direction) error {
	return m.Called(pin, dir).Error(0)
}

func (m *mockIO) Read(pin int) (bool, error) {
	args := m.Called(pin)
	return args.Bool(0), args.Error(1)
}

func (m *mockIO) Write(pin int, level bool) error {
	return m.Called(pin, level).Error(0)
}

func TestTick_WriteFailureAdvancesWithoutPublishing(t *testing.T) {
	ctx := context.Background()
	z := newZone(t, 5, 10)
	st := store.NewMemory()
	require.NoError(t, st.Set(ctx, "sensors/living/target_heatingcooling_state", "1"))
	require.NoError(t, st.Set(ctx, "sensors/living/control_value", "1"))

	io := &mockIO{}
	io.On("Write", 22, true).Return(errors.New("pinctrl: exit status 1")).Once()

	New(z, st, io, nil).Tick(ctx)

	io.AssertExpectations(t)
	assert.Equal(t, 1, z.Cycle())
	assert.Equal(t, model.ModeOff, z.Relay())
	_, err := st.Get(ctx, "sensors/living/heating_cooling_state")
	assert.ErrorIs(t, err, store.ErrMissing)
}
