// Package pinctrl wraps the Raspberry Pi `pinctrl` command line tool.
package pinctrl

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Option is one `pinctrl set` argument.
type Option string

const (
	Input     Option = "ip"
	Output    Option = "op"
	NoPull    Option = "pn"
	DriveHigh Option = "dh"
	DriveLow  Option = "dl"
)

// Drive returns the drive option for an electrical level.
func Drive(high bool) Option {
	if high {
		return DriveHigh
	}
	return DriveLow
}

// State is one line of `pinctrl get` output.
type State struct {
	Pin   int
	Mode  string // ip, op, no, a0..a5
	Pull  string // pu, pd, pn
	Drive string // dh, dl, or empty for inputs
	Level string // hi, lo, --
	Label string
}

func (s State) High() bool     { return s.Level == "hi" }
func (s State) IsOutput() bool { return s.Mode == string(Output) }

// Active interprets the electrical level through the pin's polarity.
func (s State) Active(activeHigh bool) bool {
	return s.High() == activeHigh
}

var stateLine = regexp.MustCompile(`^\s*(\d+):\s+(\S+)\s+(.*?)\s*\|\s+(\S+)\s+//\s+(.*)$`)

var run = func(args ...string) ([]byte, error) {
	return exec.Command("pinctrl", args...).CombinedOutput()
}

// Get returns the state of the requested pins, or of every pin when none
// are named. A requested pin missing from the output is an error.
func Get(pins ...int) (map[int]State, error) {
	args := []string{"get"}
	if len(pins) > 0 {
		ids := make([]string, len(pins))
		for i, p := range pins {
			ids[i] = strconv.Itoa(p)
		}
		args = append(args, strings.Join(ids, ","))
	}

	out, err := run(args...)
	if err != nil {
		return nil, fmt.Errorf("pinctrl get: %w (output: %s)", err, bytes.TrimSpace(out))
	}
	states, err := parseStates(out)
	if err != nil {
		return nil, err
	}
	for _, p := range pins {
		if _, ok := states[p]; !ok {
			return nil, fmt.Errorf("pin %d not found in pinctrl output", p)
		}
	}
	return states, nil
}

func parseStates(out []byte) (map[int]State, error) {
	states := make(map[int]State)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := stateLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		pin, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		s := State{Pin: pin, Mode: m[2], Level: m[4], Label: m[5]}
		for _, f := range strings.Fields(m[3]) {
			switch f {
			case "pu", "pd", "pn":
				s.Pull = f
			case string(DriveHigh), string(DriveLow):
				s.Drive = f
			}
		}
		states[pin] = s
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan pinctrl output: %w", err)
	}
	return states, nil
}

// Level reads a pin's electrical level with `pinctrl lev`.
func Level(pin int) (bool, error) {
	out, err := run("lev", strconv.Itoa(pin))
	if err != nil {
		return false, fmt.Errorf("pinctrl lev %d: %w", pin, err)
	}
	switch v := strings.TrimSpace(string(out)); v {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("pinctrl lev %d: unexpected output %q", pin, v)
	}
}

// Set applies options to a pin, e.g. Set(22, Output, NoPull, DriveLow).
func Set(pin int, opts ...Option) error {
	args := []string{"set", strconv.Itoa(pin)}
	for _, o := range opts {
		args = append(args, string(o))
	}
	if out, err := run(args...); err != nil {
		return fmt.Errorf("pinctrl set %d: %w (output: %s)", pin, err, bytes.TrimSpace(out))
	}
	return nil
}
