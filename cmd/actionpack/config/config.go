package config

import (
	"time"

	"github.com/dennishilgert/actionpack/pkg/configuration"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/spf13/viper"
)

var log = logger.NewLogger("actionpack.config")

type Config struct {
	ApiKey  string
	ApiHost string

	WorkspaceRoot string
	KeepWorkspace bool

	AllowedKinds string
	DefaultKind  string

	Installer         string
	VirtualenvCommand string
	PipCommand        string
	InstallerImage    string
	InstallTimeout    time.Duration

	PublishTimeout time.Duration
	TlsSkipVerify  bool
	PruneTests     bool

	ProxyPort         int
	ProxyWorkerCount  int
	ProxyBuildTimeout time.Duration

	StorageEndpoint        string
	StorageAccessKeyId     string
	StorageSecretAccessKey string
	StorageUseSsl          bool
	StorageBucket          string
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	var config Config

	// automatically load environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ACTIONPACK")

	// the platform injects the credentials, they are checked when a build needs them
	configuration.LoadOrDefault("ApiKey", "__OW_API_KEY", "")
	configuration.LoadOrDefault("ApiHost", "__OW_API_HOST", "")

	configuration.LoadOrDefault("WorkspaceRoot", "ACTIONPACK_WORKSPACE_ROOT", "/tmp")
	configuration.LoadOrDefault("KeepWorkspace", "ACTIONPACK_KEEP_WORKSPACE", false)

	configuration.LoadOrDefault("AllowedKinds", "ACTIONPACK_ALLOWED_KINDS", "python:2,python:3")
	configuration.LoadOrDefault("DefaultKind", "ACTIONPACK_DEFAULT_KIND", "python:2")

	configuration.LoadOrDefault("Installer", "ACTIONPACK_INSTALLER", "exec")
	configuration.LoadOrDefault("VirtualenvCommand", "ACTIONPACK_VIRTUALENV_COMMAND", "virtualenv")
	configuration.LoadOrDefault("PipCommand", "ACTIONPACK_PIP_COMMAND", "pip")
	configuration.LoadOrDefault("InstallerImage", "ACTIONPACK_INSTALLER_IMAGE", "python:3.11-slim")
	configuration.LoadOrDefault("InstallTimeout", "ACTIONPACK_INSTALL_TIMEOUT", 600*time.Second)

	configuration.LoadOrDefault("PublishTimeout", "ACTIONPACK_PUBLISH_TIMEOUT", 60*time.Second)
	configuration.LoadOrDefault("TlsSkipVerify", "ACTIONPACK_TLS_SKIP_VERIFY", true)
	configuration.LoadOrDefault("PruneTests", "ACTIONPACK_PRUNE_TESTS", false)

	configuration.LoadOrDefault("ProxyPort", "ACTIONPACK_PROXY_PORT", 8080)
	configuration.LoadOrDefault("ProxyWorkerCount", "ACTIONPACK_PROXY_WORKER_COUNT", 2)
	configuration.LoadOrDefault("ProxyBuildTimeout", "ACTIONPACK_PROXY_BUILD_TIMEOUT", 15*time.Minute)

	configuration.LoadOptional("StorageEndpoint", "ACTIONPACK_STORAGE_ENDPOINT")
	configuration.LoadOptional("StorageAccessKeyId", "ACTIONPACK_STORAGE_ACCESS_KEY_ID")
	configuration.LoadOptional("StorageSecretAccessKey", "ACTIONPACK_STORAGE_SECRET_ACCESS_KEY")
	configuration.LoadOrDefault("StorageUseSsl", "ACTIONPACK_STORAGE_USE_SSL", false)
	configuration.LoadOrDefault("StorageBucket", "ACTIONPACK_STORAGE_BUCKET", "actionpack-bundles")

	// unmarshalling the Config struct
	if err := viper.Unmarshal(&config); err != nil {
		log.Errorf("unable to unmarshal config: %v", err)
		return nil, err
	}

	return &config, nil
}

// AllowedKindList returns the configured allowed kinds as a list.
func (c *Config) AllowedKindList() []string {
	return configuration.SplitList(c.AllowedKinds)
}
