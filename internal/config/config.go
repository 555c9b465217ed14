package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Profiles    ProfilesConfig    `mapstructure:"exposure_profiles"`
	Controllers ControllersConfig `mapstructure:"controllers"`
}

type SimulationConfig struct {
	// Simulated seconds advanced per tick.
	DT float64 `mapstructure:"dt"`
	// Ratio of simulated time to wall time.
	Speed float64 `mapstructure:"speed"`
}

type MQTTConfig struct {
	BrokerURL       string        `mapstructure:"broker_url"`
	PublishInterval time.Duration `mapstructure:"publish_interval"`
	OnlySendChanged bool          `mapstructure:"only_send_changed"`
}

type ProfilesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

// ControllerConfig describes one controller's protocol endpoints. An
// empty address disables the corresponding bridge; an empty profile name
// disables the MQTT and OPC-UA exposure.
type ControllerConfig struct {
	ModbusAddr string `mapstructure:"modbus_addr"`
	HTTPAddr   string `mapstructure:"http_addr"`
	Profile    string `mapstructure:"profile"`
}

type ControllersConfig struct {
	Heater ControllerConfig `mapstructure:"heater"`
	Door   ControllerConfig `mapstructure:"door"`
	Oxygen ControllerConfig `mapstructure:"oxygen"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("simulation.dt", 0.5)
	viper.SetDefault("simulation.speed", 1.0)

	viper.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	viper.SetDefault("mqtt.publish_interval", "5s")
	viper.SetDefault("mqtt.only_send_changed", true)

	viper.SetDefault("exposure_profiles.search_paths", []string{"./configs/profiles"})

	viper.SetDefault("controllers.heater.modbus_addr", "localhost:5020")
	viper.SetDefault("controllers.heater.http_addr", "localhost:8080")
	viper.SetDefault("controllers.heater.profile", "heater")
	viper.SetDefault("controllers.door.modbus_addr", "localhost:5021")
	viper.SetDefault("controllers.door.http_addr", "localhost:8081")
	viper.SetDefault("controllers.door.profile", "door")
	viper.SetDefault("controllers.oxygen.modbus_addr", "localhost:5022")
	viper.SetDefault("controllers.oxygen.http_addr", "localhost:8082")
	viper.SetDefault("controllers.oxygen.profile", "oxygen")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PLCSIM")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Simulation.DT <= 0 {
		return nil, fmt.Errorf("simulation.dt must be positive, got %g", config.Simulation.DT)
	}
	if config.Simulation.Speed <= 0 {
		return nil, fmt.Errorf("simulation.speed must be positive, got %g", config.Simulation.Speed)
	}

	return &config, nil
}
