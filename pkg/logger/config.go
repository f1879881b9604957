package logger

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	defaultJsonOutput = false
	defaultLogLevel   = "info"
	undefinedAppId    = ""
)

type Config struct {
	// AppId is the unique id of the application shown in every log line
	AppId string

	// LogJsonOutput defines the flag to enable JSON formatted log
	LogJsonOutput bool

	// LogLevel defines the level of logging
	LogLevel string
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		LogJsonOutput: defaultJsonOutput,
		AppId:         undefinedAppId,
		LogLevel:      defaultLogLevel,
	}
}

// LoadConfig loads the logger configuration from the environment.
// The logger cannot use the configuration package as that one logs through this package.
func LoadConfig() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("AppId", DefaultConfig().AppId)
	v.SetDefault("LogJsonOutput", DefaultConfig().LogJsonOutput)
	v.SetDefault("LogLevel", DefaultConfig().LogLevel)
	v.BindEnv("AppId", "ACTIONPACK_LOG_APP_ID")
	v.BindEnv("LogJsonOutput", "ACTIONPACK_LOG_FORMAT_JSON")
	v.BindEnv("LogLevel", "ACTIONPACK_LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		fmt.Printf("unable to unmarshal logger config, using defaults: %v\n", err)
		return DefaultConfig()
	}
	return config
}

// SetLogLevel validates and sets the log level.
func (c *Config) SetLogLevel(level string) error {
	if toLogLevel(level) == UndefinedLevel {
		return fmt.Errorf("undefined log output level: %s", level)
	}
	c.LogLevel = level
	return nil
}

// ApplyConfigToLoggers applies the config to all registered loggers.
func ApplyConfigToLoggers(config *Config) error {
	logLevel := toLogLevel(config.LogLevel)
	if logLevel == UndefinedLevel {
		return fmt.Errorf("invalid value for --log-level: %s", config.LogLevel)
	}

	for _, v := range getLoggers() {
		v.EnableJsonOutput(config.LogJsonOutput)
		if config.AppId != undefinedAppId {
			v.SetAppId(config.AppId)
		}
		v.SetLogLevel(logLevel)
	}
	return nil
}
