package configuration

import (
	"strings"

	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/spf13/viper"
)

var log = logger.NewLogger("actionpack.config")

// LoadOrDefault binds the config variable to the environment variable and registers the default value.
// A nil default marks the variable as required: the process exits if it is not set.
func LoadOrDefault(configVar string, envVar string, defaultVal any) {
	if defaultVal != nil {
		viper.SetDefault(configVar, defaultVal)
	}
	viper.BindEnv(configVar, envVar)
	if defaultVal == nil {
		if !viper.IsSet(configVar) {
			log.Fatalf("required environment variable %s is not set", envVar)
		}
	}
}

// LoadOptional binds the config variable to the environment variable without a default value.
// Unlike LoadOrDefault with a nil default, a missing value is not fatal.
func LoadOptional(configVar string, envVar string) {
	viper.SetDefault(configVar, "")
	viper.BindEnv(configVar, envVar)
}

// SplitList splits a comma separated config value into its trimmed, non-empty items.
func SplitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
