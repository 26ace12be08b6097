package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/pinctrl"
)

// BoilerRelay is the RelayPins key of the boiler output.
const BoilerRelay = "boiler"

// ZoneRelay returns the RelayPins key of a zone valve. Zone keys carry a
// prefix so no zone name can shadow the boiler.
func ZoneRelay(name string) string { return "zone:" + name }

// RelayPins names every output relay: one valve per zone plus the boiler.
func RelayPins(cfg *config.Config) map[string]model.GPIOPin {
	pins := map[string]model.GPIOPin{
		BoilerRelay: {Number: cfg.Boiler.OutputGPIO, ActiveHigh: !cfg.Boiler.ActiveLow},
	}
	for _, z := range cfg.Zones {
		pins[ZoneRelay(z.Name)] = model.GPIOPin{Number: z.OutputGPIO, ActiveHigh: !z.ActiveLow}
	}
	return pins
}

// ConfigurePins sets every input pin as an input and every relay as an
// inactive output.
func ConfigurePins(io gpio.DigitalIO, cfg *config.Config) error {
	for _, pin := range cfg.InputPins() {
		if err := io.Configure(pin, gpio.Input); err != nil {
			return fmt.Errorf("configure input %d: %w", pin, err)
		}
		log.Debug().Int("pin", pin).Msg("Configured input")
	}

	relays := RelayPins(cfg)
	for _, name := range sortedNames(relays) {
		pin := relays[name]
		if err := io.Configure(pin.Number, gpio.Output); err != nil {
			return fmt.Errorf("configure output %s (%d): %w", name, pin.Number, err)
		}
		if err := gpio.Deactivate(io, pin); err != nil {
			return err
		}
		log.Debug().Str("relay", name).Int("pin", pin.Number).Msg("Configured output")
	}
	return nil
}

// BootScript renders a shell script that puts every pin in its safe state.
func BootScript(cfg *config.Config) string {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Hydronic controller GPIO pin configuration at boot", "")

	for _, pin := range cfg.InputPins() {
		lines = append(lines, fmt.Sprintf("pinctrl set %d %s %s", pin, pinctrl.Input, pinctrl.NoPull))
	}
	lines = append(lines, "")

	relays := RelayPins(cfg)
	for _, name := range sortedNames(relays) {
		pin := relays[name]
		lines = append(lines, fmt.Sprintf("# %s", name))
		lines = append(lines, fmt.Sprintf("pinctrl set %d %s %s %s", pin.Number, pinctrl.Output, pinctrl.NoPull, pinctrl.Drive(!pin.ActiveHigh)))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript(cfg *config.Config, path string) error {
	return os.WriteFile(path, []byte(BootScript(cfg)), 0755)
}

func InstallStartupService(scriptPath, unitPath string) error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Configure GPIO pins at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, scriptPath)

	return os.WriteFile(unitPath, []byte(unitContents), 0644)
}

// InstallControllerService writes a unit that runs the controller after the
// GPIO unit at gpioUnitPath.
func InstallControllerService(unitPath, gpioUnitPath, execCmd string) error {
	gpioUnitName := filepath.Base(gpioUnitPath)

	unit := fmt.Sprintf(`[Unit]
Description=Hydronic zone controller
After=%s redis-server.service
Requires=%s

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, execCmd)

	return os.WriteFile(unitPath, []byte(unit), 0644)
}

func RunStartupScript(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func sortedNames(pins map[string]model.GPIOPin) []string {
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
