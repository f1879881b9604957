package installer

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/container"
	"github.com/dennishilgert/actionpack/pkg/utils"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	docker "github.com/docker/docker/client"
)

const (
	DefaultInstallerImage = "python:3.11-slim"

	// Mount target of the workspace inside the installer container.
	containerWorkspaceDir = "/workspace"
)

// installScript installs virtualenv into a scratch target so the container image stays untouched.
const installScript = `set -e
export HOME=/tmp
if [ ! -d "$ENV_DIR" ]; then
  pip install --quiet --disable-pip-version-check --target /tmp/actionpack-tools virtualenv
  PYTHONPATH=/tmp/actionpack-tools python -m virtualenv "$ENV_DIR"
fi
pip install --disable-pip-version-check --prefix "$ENV_DIR" -r "$MANIFEST"
`

type DockerOptions struct {
	// Image is the Python image the installation runs in.
	Image string

	// Timeout bounds the whole installation. Zero disables the deadline.
	Timeout time.Duration

	// Container holds the registry credentials used when pulling the image.
	Container container.Config
}

type dockerInstaller struct {
	client    *docker.Client
	image     string
	timeout   time.Duration
	container container.Config
}

// NewDockerInstaller creates an Installer that runs virtualenv and pip inside a container
// with the workspace bind mounted.
func NewDockerInstaller(opts DockerOptions) (Installer, error) {
	image := opts.Image
	if image == "" {
		image = DefaultInstallerImage
	}
	if !utils.IsValidImageRef(image) {
		return nil, fmt.Errorf("invalid installer image: %s", image)
	}
	client, err := container.GetDefaultClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get default docker client: %w", err)
	}
	return &dockerInstaller{
		client:    client,
		image:     image,
		timeout:   opts.Timeout,
		container: opts.Container,
	}, nil
}

func (d *dockerInstaller) Install(ctx context.Context, ws *workspace.Workspace, manifestPath string) (*Environment, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	relManifest, err := ws.Rel(manifestPath)
	if err != nil {
		return nil, faults.Wrap(faults.DependencyInstall, err, "manifest is not inside the workspace")
	}

	installLog := log.WithFields(map[string]any{"image": d.image, "workspace": ws.Path})
	if err := container.ImageEnsure(ctx, d.client, installLog, d.container, d.image); err != nil {
		return nil, faults.Wrap(faults.DependencyInstall, err, "failed to provide installer image")
	}

	containerConfig, hostConfig := d.containerSpec(ws.Path, relManifest)
	installLog.Infof("installing packages from %s in container", relManifest)
	result, err := container.ContainerRun(ctx, d.client, installLog, containerConfig, hostConfig)
	if err != nil {
		return nil, faults.Wrap(faults.DependencyInstall, err, "failed to run installer container")
	}
	installLog.Debug(result.Stdout)
	if result.ExitCode != 0 {
		cause := fmt.Errorf("exit code %d: %s", result.ExitCode, outputTail(result.Stderr+"\n"+result.Stdout, outputTailLines))
		return nil, faults.Wrap(faults.DependencyInstall, cause, "failed to install packages")
	}

	return verifyEnvironment(ws.Join(naming.VirtualenvDirName))
}

// containerSpec returns the container configuration of an installation. The container runs
// as the current user so the workspace stays removable.
func (d *dockerInstaller) containerSpec(workspaceDir string, relManifest string) (dockercontainer.Config, dockercontainer.HostConfig) {
	containerConfig := dockercontainer.Config{
		Image:      d.image,
		Cmd:        []string{"/bin/sh", "-c", installScript},
		WorkingDir: containerWorkspaceDir,
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Env: []string{
			"ENV_DIR=" + path.Join(containerWorkspaceDir, naming.VirtualenvDirName),
			"MANIFEST=" + path.Join(containerWorkspaceDir, relManifest),
		},
	}
	hostConfig := dockercontainer.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: workspaceDir,
				Target: containerWorkspaceDir,
			},
		},
	}
	return containerConfig, hostConfig
}
