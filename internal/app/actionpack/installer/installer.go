package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/utils"
)

var log = logger.NewLogger("actionpack.installer")

const (
	BackendExec   = "exec"
	BackendDocker = "docker"

	// Number of output lines attached to an install fault.
	outputTailLines = 20

	// Time given to a cancelled command to close its output pipes.
	waitDelay = 5 * time.Second
)

// Environment is an isolated package installation root inside the workspace.
type Environment struct {
	// Root is the directory of the environment.
	Root string

	// ActivateScript is the path of the activation stub.
	ActivateScript string
}

type Installer interface {
	// Install creates the isolated environment if it is absent and installs the manifest into it.
	Install(ctx context.Context, ws *workspace.Workspace, manifestPath string) (*Environment, error)
}

type Options struct {
	// VirtualenvCommand creates an environment in the directory given as last argument.
	VirtualenvCommand string

	// PipCommand installs packages.
	PipCommand string

	// Timeout bounds the whole installation. Zero disables the deadline.
	Timeout time.Duration
}

type execInstaller struct {
	virtualenvCommand []string
	pipCommand        []string
	timeout           time.Duration
}

// NewExecInstaller creates an Installer that runs virtualenv and pip on the host.
func NewExecInstaller(opts Options) Installer {
	virtualenvCommand := strings.Fields(opts.VirtualenvCommand)
	if len(virtualenvCommand) == 0 {
		virtualenvCommand = []string{"virtualenv"}
	}
	pipCommand := strings.Fields(opts.PipCommand)
	if len(pipCommand) == 0 {
		pipCommand = []string{"pip"}
	}
	return &execInstaller{
		virtualenvCommand: virtualenvCommand,
		pipCommand:        pipCommand,
		timeout:           opts.Timeout,
	}
}

func (e *execInstaller) Install(ctx context.Context, ws *workspace.Workspace, manifestPath string) (*Environment, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	envDir := ws.Join(naming.VirtualenvDirName)
	if utils.IsDirPath(envDir) {
		log.Infof("reusing virtualenv at %s", envDir)
	} else {
		log.Infof("creating virtualenv in project dir %s", envDir)
		args := append(append([]string{}, e.virtualenvCommand[1:]...), envDir)
		if err := runCommand(ctx, ws.Path, nil, e.virtualenvCommand[0], args...); err != nil {
			return nil, faults.Wrap(faults.DependencyInstall, err, "failed to create virtualenv")
		}
	}

	// The environment is activated for the child process only.
	envVars := map[string]string{
		"VIRTUAL_ENV":                   envDir,
		"PATH":                          filepath.Join(envDir, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
		"PIP_DISABLE_PIP_VERSION_CHECK": "1",
	}

	log.Infof("installing packages from the requirements file at %s", manifestPath)
	args := append(append([]string{}, e.pipCommand[1:]...), "install", "--prefix", envDir, "-r", manifestPath)
	if err := runCommand(ctx, ws.Path, envVars, e.pipCommand[0], args...); err != nil {
		return nil, faults.Wrap(faults.DependencyInstall, err, "failed to install packages")
	}

	return verifyEnvironment(envDir)
}

// verifyEnvironment checks that the environment carries an activation stub.
func verifyEnvironment(envDir string) (*Environment, error) {
	activateScript := naming.ActivateScriptPath(envDir)
	if !utils.IsRegularFile(activateScript) {
		return nil, faults.Newf(faults.DependencyInstall, "virtualenv at %s has no activation script", envDir)
	}
	return &Environment{
		Root:           envDir,
		ActivateScript: activateScript,
	}, nil
}

// runCommand runs the command and turns a non-zero exit status into an error carrying the output tail.
func runCommand(ctx context.Context, dir string, envVars map[string]string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	if envVars != nil {
		cmd.Env = utils.MergeEnv(os.Environ(), envVars)
	}

	log.Debugf("running command: %s %s", name, strings.Join(args, " "))
	output, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			log.Debug(line)
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", name, ctx.Err())
	}
	if tail := outputTail(string(output), outputTailLines); tail != "" {
		return fmt.Errorf("%s: %w: %s", name, err, tail)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// outputTail returns the last n non-empty lines of the output joined by " | ".
func outputTail(output string, n int) string {
	lines := []string{}
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
