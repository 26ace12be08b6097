package gpio

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/pinctrl"
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// DigitalIO is raw pin access: levels are electrical, not logical.
type DigitalIO interface {
	Configure(pin int, dir Direction) error
	Read(pin int) (bool, error)
	Write(pin int, level bool) error
}

// Pinctrl drives pins through the Raspberry Pi `pinctrl` tool.
type Pinctrl struct{}

func (Pinctrl) Configure(pin int, dir Direction) error {
	if dir == Output {
		return pinctrl.Set(pin, pinctrl.Output, pinctrl.NoPull)
	}
	return pinctrl.Set(pin, pinctrl.Input, pinctrl.NoPull)
}

func (Pinctrl) Read(pin int) (bool, error) {
	return pinctrl.Level(pin)
}

func (Pinctrl) Write(pin int, level bool) error {
	return pinctrl.Set(pin, pinctrl.Output, pinctrl.NoPull, pinctrl.Drive(level))
}

// SafeMode passes reads through and drops every write and output configuration.
type SafeMode struct {
	DigitalIO
}

func (s SafeMode) Configure(pin int, dir Direction) error {
	if dir == Output {
		log.Debug().Int("pin", pin).Msg("Safe mode: skipping output configuration")
		return nil
	}
	return s.DigitalIO.Configure(pin, dir)
}

func (s SafeMode) Write(pin int, level bool) error {
	log.Debug().Int("pin", pin).Bool("level", level).Msg("Safe mode: skipping write")
	return nil
}

// Memory is an in-process pin bank.
type Memory struct {
	mu     sync.Mutex
	levels map[int]bool
	dirs   map[int]Direction
	writes map[int]int
}

func NewMemory() *Memory {
	return &Memory{
		levels: map[int]bool{},
		dirs:   map[int]Direction{},
		writes: map[int]int{},
	}
}

func (m *Memory) Configure(pin int, dir Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[pin] = dir
	return nil
}

func (m *Memory) Read(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *Memory) Write(pin int, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir, ok := m.dirs[pin]; ok && dir != Output {
		return fmt.Errorf("pin %d is configured as %s", pin, dir)
	}
	m.levels[pin] = level
	m.writes[pin]++
	return nil
}

// Set forces a level regardless of direction, e.g. to simulate an input contact.
func (m *Memory) Set(pin int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

func (m *Memory) Writes(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[pin]
}

func (m *Memory) DirectionOf(pin int) (Direction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dirs[pin]
	return d, ok
}

func Activate(io DigitalIO, pin model.GPIOPin) error {
	return Drive(io, pin, true)
}

func Deactivate(io DigitalIO, pin model.GPIOPin) error {
	return Drive(io, pin, false)
}

// Drive sets the logical state of a pin, honouring its polarity.
func Drive(io DigitalIO, pin model.GPIOPin, active bool) error {
	level := active == pin.ActiveHigh
	if err := io.Write(pin.Number, level); err != nil {
		return fmt.Errorf("failed to drive pin %d active=%v: %w", pin.Number, active, err)
	}
	return nil
}

func CurrentlyActive(io DigitalIO, pin model.GPIOPin) (bool, error) {
	level, err := io.Read(pin.Number)
	if err != nil {
		return false, err
	}
	return pin.ActiveHigh == level, nil
}

// ValidateStartupPins checks that every named relay is inactive before the
// controllers take over.
func ValidateStartupPins(io DigitalIO, pins map[string]model.GPIOPin) error {
	for name, pin := range pins {
		active, err := CurrentlyActive(io, pin)
		if err != nil {
			return fmt.Errorf("failed to read pin level for %s (GPIO %d): %w", name, pin.Number, err)
		}
		if active {
			return fmt.Errorf("pin %d (%s) is in wrong state at startup (expected active=false)", pin.Number, name)
		}
	}
	return nil
}
