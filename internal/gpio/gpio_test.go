package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

func TestDrive_Polarity(t *testing.T) {
	io := NewMemory()
	high := model.GPIOPin{Number: 17, ActiveHigh: true}
	low := model.GPIOPin{Number: 22, ActiveHigh: false}

	require.NoError(t, Activate(io, high))
	require.NoError(t, Activate(io, low))

	level, _ := io.Read(17)
	assert.True(t, level)
	level, _ = io.Read(22)
	assert.False(t, level, "active-low relay is driven low when active")

	active, err := CurrentlyActive(io, low)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, Deactivate(io, low))
	active, err = CurrentlyActive(io, low)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestMemory_WriteToInputFails(t *testing.T) {
	io := NewMemory()
	require.NoError(t, io.Configure(5, Input))

	err := Drive(io, model.GPIOPin{Number: 5, ActiveHigh: true}, true)
	assert.Error(t, err)
}

func TestSafeMode_DropsWrites(t *testing.T) {
	mem := NewMemory()
	safe := SafeMode{DigitalIO: mem}

	require.NoError(t, safe.Configure(17, Output))
	require.NoError(t, safe.Configure(5, Input))
	require.NoError(t, Activate(safe, model.GPIOPin{Number: 17, ActiveHigh: true}))

	assert.Equal(t, 0, mem.Writes(17))
	_, configured := mem.DirectionOf(17)
	assert.False(t, configured)
	dir, configured := mem.DirectionOf(5)
	assert.True(t, configured)
	assert.Equal(t, Input, dir)

	mem.Set(5, true)
	level, err := safe.Read(5)
	require.NoError(t, err)
	assert.True(t, level)
}

func TestValidateStartupPins_Valid(t *testing.T) {
	io := NewMemory()
	io.Set(17, false)
	io.Set(22, true) // active-low relay idles high

	err := ValidateStartupPins(io, map[string]model.GPIOPin{
		"boiler":     {Number: 17, ActiveHigh: true},
		"zone.valve": {Number: 22, ActiveHigh: false},
	})
	assert.NoError(t, err)
}

func TestValidateStartupPins_Mismatch(t *testing.T) {
	io := NewMemory()
	io.Set(17, true)

	err := ValidateStartupPins(io, map[string]model.GPIOPin{
		"boiler": {Number: 17, ActiveHigh: true},
	})
	if err == nil {
		t.Fatal("expected error due to GPIO state mismatch, got nil")
	}
}
