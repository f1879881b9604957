package container

import (
	"github.com/dennishilgert/actionpack/pkg/configuration"
	"github.com/spf13/viper"
)

type Config struct {
	// Specifies the time in seconds the container is given to shutdown gracefully.
	ContainerStopTimeout int

	// Username for the authentication with the image registry.
	ImageRegistryUsername string

	// Password for the authentication with the image registry.
	ImageRegistryPassword string
}

func DefaultConfig() Config {
	return Config{
		ContainerStopTimeout:  5,
		ImageRegistryUsername: "",
		ImageRegistryPassword: "",
	}
}

// LoadConfig loads the container configuration from the environment.
func LoadConfig() Config {
	// automatically load environment variables that match
	viper.AutomaticEnv()

	// loading the values from the environment or use default values
	configuration.LoadOrDefault("Container.ContainerStopTimeout", "ACTIONPACK_CONTAINER_STOP_TIMEOUT", DefaultConfig().ContainerStopTimeout)
	configuration.LoadOrDefault("Container.ImageRegistryUsername", "ACTIONPACK_IMAGE_REGISTRY_USERNAME", DefaultConfig().ImageRegistryUsername)
	configuration.LoadOrDefault("Container.ImageRegistryPassword", "ACTIONPACK_IMAGE_REGISTRY_PASSWORD", DefaultConfig().ImageRegistryPassword)

	var config Config
	if err := viper.UnmarshalKey("Container", &config); err != nil {
		log.Warnf("unable to unmarshal container config, using defaults: %v", err)
		return DefaultConfig()
	}
	return config
}
