package app

import (
	"fmt"

	"github.com/dennishilgert/actionpack/cmd/actionpack/config"
	"github.com/dennishilgert/actionpack/internal/app/actionpack"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/installer"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/publisher"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/metrics"
	"github.com/dennishilgert/actionpack/pkg/storage"
)

var log = logger.NewLogger("actionpack.app")

// NewService wires the build pipeline from the configuration.
func NewService(cfg *config.Config, buildMetrics metrics.BuildMetrics) (actionpack.Service, error) {
	inst, err := installer.New(installer.FactoryOptions{
		Backend:           cfg.Installer,
		VirtualenvCommand: cfg.VirtualenvCommand,
		PipCommand:        cfg.PipCommand,
		Image:             cfg.InstallerImage,
		Timeout:           cfg.InstallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating installer: %w", err)
	}

	var storageService storage.StorageService
	if cfg.StorageEndpoint != "" {
		storageService, err = storage.NewStorageService(storage.Options{
			Endpoint:        cfg.StorageEndpoint,
			AccessKeyId:     cfg.StorageAccessKeyId,
			SecretAccessKey: cfg.StorageSecretAccessKey,
			UseSsl:          cfg.StorageUseSsl,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating storage service: %w", err)
		}
		log.Infof("bundles are archived to %s/%s", cfg.StorageEndpoint, cfg.StorageBucket)
	}

	return actionpack.NewService(inst, storageService, buildMetrics, actionpack.Options{
		AllowedKinds: cfg.AllowedKindList(),
		DefaultKind:  cfg.DefaultKind,
		Workspace: workspace.Options{
			Root:         cfg.WorkspaceRoot,
			Keep:         cfg.KeepWorkspace,
			UniqueSuffix: true,
		},
		PruneTests:     cfg.PruneTests,
		PublishTimeout: cfg.PublishTimeout,
		SkipTlsVerify:  cfg.TlsSkipVerify,
		StorageBucket:  cfg.StorageBucket,
	}), nil
}

// Credentials returns the configured platform credentials.
func Credentials(cfg *config.Config) publisher.Credentials {
	return publisher.Credentials{
		ApiKey:  cfg.ApiKey,
		ApiHost: cfg.ApiHost,
	}
}
