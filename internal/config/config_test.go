package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "simulation:\n  dt: 0.5\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Simulation.DT)
	assert.Equal(t, 1.0, cfg.Simulation.Speed)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, 5*time.Second, cfg.MQTT.PublishInterval)
	assert.True(t, cfg.MQTT.OnlySendChanged)
	assert.Equal(t, []string{"./configs/profiles"}, cfg.Profiles.SearchPaths)
	assert.Equal(t, "localhost:5020", cfg.Controllers.Heater.ModbusAddr)
	assert.Equal(t, "oxygen", cfg.Controllers.Oxygen.Profile)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
simulation:
  dt: 0.1
  speed: 10.0
mqtt:
  broker_url: "tcp://broker.example:1883"
  publish_interval: "2s"
  only_send_changed: false
controllers:
  heater:
    modbus_addr: "0.0.0.0:1502"
    http_addr: ""
    profile: "custom-heater"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Simulation.DT)
	assert.Equal(t, 10.0, cfg.Simulation.Speed)
	assert.Equal(t, "tcp://broker.example:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, 2*time.Second, cfg.MQTT.PublishInterval)
	assert.False(t, cfg.MQTT.OnlySendChanged)
	assert.Equal(t, "0.0.0.0:1502", cfg.Controllers.Heater.ModbusAddr)
	assert.Equal(t, "custom-heater", cfg.Controllers.Heater.Profile)
	// Untouched controllers keep their defaults.
	assert.Equal(t, "localhost:5021", cfg.Controllers.Door.ModbusAddr)
}

func TestLoadRejectsBadTiming(t *testing.T) {
	path := writeConfig(t, "simulation:\n  dt: -1.0\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "simulation:\n  dt: 0.5\n  speed: 0.0\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
