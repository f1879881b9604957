package installer

import (
	"fmt"
	"time"

	"github.com/dennishilgert/actionpack/pkg/container"
)

type FactoryOptions struct {
	Backend           string
	VirtualenvCommand string
	PipCommand        string
	Image             string
	Timeout           time.Duration
}

// New creates the Installer of the configured backend.
func New(opts FactoryOptions) (Installer, error) {
	switch opts.Backend {
	case "", BackendExec:
		return NewExecInstaller(Options{
			VirtualenvCommand: opts.VirtualenvCommand,
			PipCommand:        opts.PipCommand,
			Timeout:           opts.Timeout,
		}), nil
	case BackendDocker:
		return NewDockerInstaller(DockerOptions{
			Image:     opts.Image,
			Timeout:   opts.Timeout,
			Container: container.LoadConfig(),
		})
	}
	return nil, fmt.Errorf("unknown installer backend: %s", opts.Backend)
}
