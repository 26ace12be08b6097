package startup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Inputs: []int{5},
		Boiler: config.Boiler{OutputGPIO: 17},
		Zones: []config.Zone{
			{Name: "living", SensorPath: "sensors/living", InputGPIO: 5, OutputGPIO: 22},
			{Name: "bath", SensorPath: "sensors/bath", InputGPIO: 6, OutputGPIO: 23, ActiveLow: true},
		},
	}
}

func TestRelayPins(t *testing.T) {
	pins := RelayPins(testConfig())
	assert.Equal(t, map[string]model.GPIOPin{
		"boiler":      {Number: 17, ActiveHigh: true},
		"zone:living": {Number: 22, ActiveHigh: true},
		"zone:bath":   {Number: 23, ActiveHigh: false},
	}, pins)
}

func TestRelayPins_ZoneNamedBoiler(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
		"boiler": {"output_gpio": 17},
		"zones": [{"name": "boiler", "sensor_path": "sensors/boiler", "input_gpio": 5, "output_gpio": 22}]
	}`), ".json")
	require.NoError(t, err)

	pins := RelayPins(&cfg)
	assert.Equal(t, model.GPIOPin{Number: 17, ActiveHigh: true}, pins[BoilerRelay])
	assert.Equal(t, model.GPIOPin{Number: 22, ActiveHigh: true}, pins[ZoneRelay("boiler")])

	io := gpio.NewMemory()
	require.NoError(t, ConfigurePins(io, &cfg))
	for _, pin := range []int{17, 22} {
		dir, ok := io.DirectionOf(pin)
		require.True(t, ok, "pin %d", pin)
		assert.Equal(t, gpio.Output, dir)
		assert.Equal(t, 1, io.Writes(pin))
	}
}

func TestBootScript(t *testing.T) {
	script := BootScript(testConfig())

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "pinctrl set 5 ip pn\n")
	assert.Contains(t, script, "pinctrl set 6 ip pn\n")
	assert.Contains(t, script, "# boiler\npinctrl set 17 op pn dl\n")
	assert.Contains(t, script, "# zone:living\npinctrl set 22 op pn dl\n")
	assert.Contains(t, script, "# zone:bath\npinctrl set 23 op pn dh\n")
	assert.Less(t, strings.Index(script, "# boiler"), strings.Index(script, "# zone:bath"))
}

func TestWriteStartupScriptAndUnits(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "gpio-boot.sh")
	gpioUnit := filepath.Join(dir, "hydronic-gpio.service")
	mainUnit := filepath.Join(dir, "hydronic-controller.service")

	require.NoError(t, WriteStartupScript(testConfig(), script))
	require.NoError(t, InstallStartupService(script, gpioUnit))
	require.NoError(t, InstallControllerService(mainUnit, gpioUnit, "/usr/local/bin/hydronic-controller -c /etc/hydronic/config.json"))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	unit, err := os.ReadFile(gpioUnit)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart="+script)

	main, err := os.ReadFile(mainUnit)
	require.NoError(t, err)
	assert.Contains(t, string(main), "Requires=hydronic-gpio.service")
	assert.Contains(t, string(main), "ExecStart=/usr/local/bin/hydronic-controller -c /etc/hydronic/config.json")
}

func TestConfigurePins(t *testing.T) {
	io := gpio.NewMemory()
	require.NoError(t, ConfigurePins(io, testConfig()))

	for _, pin := range []int{5, 6} {
		dir, ok := io.DirectionOf(pin)
		require.True(t, ok)
		assert.Equal(t, gpio.Input, dir)
	}
	for _, pin := range []int{17, 22, 23} {
		dir, ok := io.DirectionOf(pin)
		require.True(t, ok)
		assert.Equal(t, gpio.Output, dir)
		assert.Equal(t, 1, io.Writes(pin))
	}

	level, err := io.Read(23)
	require.NoError(t, err)
	assert.True(t, level, "inactive active-low relay is held high")
}
