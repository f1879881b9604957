package container

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dennishilgert/actionpack/pkg/defers"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/registry"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

var log = logger.NewLogger("actionpack.container")

// RunResult is the outcome of a container that ran to completion.
type RunResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
}

// GetDefaultClient returns a default instance of the Docker client.
func GetDefaultClient() (*docker.Client, error) {
	return docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
}

// registryAuth returns the encoded registry credentials.
func registryAuth(config Config) (string, error) {
	authConfig := registry.AuthConfig{
		Username: config.ImageRegistryUsername,
		Password: config.ImageRegistryPassword,
	}
	encodedJSON, err := json.Marshal(authConfig)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(encodedJSON), nil
}

// ImageEnsure pulls the image from the registry if it is not present on the Docker host.
func ImageEnsure(ctx context.Context, client *docker.Client, log logger.Logger, config Config, refStr string) error {
	if _, _, err := client.ImageInspectWithRaw(ctx, refStr); err == nil {
		log.Debugf("image already present: %s", refStr)
		return nil
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	authStr, err := registryAuth(config)
	if err != nil {
		return err
	}
	log.Infof("pulling image: %s", refStr)
	response, err := client.ImagePull(ctx, refStr, types.ImagePullOptions{
		All:          false,
		RegistryAuth: authStr,
	})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return processDockerOutput(log, response, dockerReaderStatus())
}

// ContainerRun creates and starts a container, waits for it to exit and returns its output.
// The container is removed when the run is done.
func ContainerRun(ctx context.Context, client *docker.Client, log logger.Logger, containerConfig container.Config, hostConfig container.HostConfig) (*RunResult, error) {
	cleanup := defers.NewDefers()
	defer cleanup.CallAll()

	log.Debugf("creating container from image: %s", containerConfig.Image)
	createResponse, err := client.ContainerCreate(ctx, &containerConfig, &hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker container: %w", err)
	}
	containerId := createResponse.ID
	log = log.WithFields(map[string]any{"container-id": shortId(containerId)})

	cleanup.Add(func() {
		ContainerRemove(context.Background(), client, log, containerId)
	})

	// Register the wait before starting so a fast exit is not missed.
	chanWaitOk, chanWaitErr := client.ContainerWait(ctx, containerId, container.WaitConditionNextExit)

	log.Debug("starting container")
	if err := client.ContainerStart(ctx, containerId, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start Docker container: %w", err)
	}

	var exitCode int64
	select {
	case ok := <-chanWaitOk:
		if ok.Error != nil && ok.Error.Message != "" {
			return nil, fmt.Errorf("error while waiting for container: %s", ok.Error.Message)
		}
		exitCode = ok.StatusCode
	case err := <-chanWaitErr:
		ContainerStop(context.Background(), client, log, containerId)
		return nil, fmt.Errorf("error while waiting for container: %w", err)
	}
	log.Debugf("container exited with code %d", exitCode)

	logs, err := client.ContainerLogs(ctx, containerId, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to demultiplex container logs: %w", err)
	}

	return &RunResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// ContainerStop stops a container gracefully or kills it after a timeout.
func ContainerStop(ctx context.Context, client *docker.Client, log logger.Logger, containerId string) {
	log.Debug("stopping container")
	timeout := LoadConfig().ContainerStopTimeout
	if err := client.ContainerStop(ctx, containerId, container.StopOptions{Timeout: &timeout}); err != nil {
		log.Warnf("failed to stop container gracefully, killing: %v", err)
		if err := client.ContainerKill(ctx, containerId, "SIGKILL"); err != nil {
			log.Warnf("failed to kill container: %v", err)
		}
	}
}

// ContainerRemove removes a Docker container instance.
func ContainerRemove(ctx context.Context, client *docker.Client, log logger.Logger, containerId string) {
	log.Debug("removing container")
	containerRemoveOptions := container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	}
	if err := client.ContainerRemove(ctx, containerId, containerRemoveOptions); err != nil {
		log.Warnf("failed to remove container: %v", err)
	}
}

func shortId(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
