package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/utils"
	"github.com/google/uuid"
)

var log = logger.NewLogger("actionpack.workspace")

type Options struct {
	// Root is the directory the workspaces are created in.
	Root string

	// Keep disables the removal of the workspace on release.
	Keep bool

	// UniqueSuffix appends a random suffix to the workspace name.
	UniqueSuffix bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Workspace is the per invocation directory holding all intermediate and output artifacts.
type Workspace struct {
	Path string
	keep bool
}

type Preparer interface {
	Acquire(actionName string) (*Workspace, error)
}

type preparer struct {
	root         string
	keep         bool
	uniqueSuffix bool
	clock        func() time.Time
}

// NewPreparer creates a new workspace Preparer.
func NewPreparer(opts Options) Preparer {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	root := opts.Root
	if root == "" {
		root = os.TempDir()
	}
	return &preparer{
		root:         root,
		keep:         opts.Keep,
		uniqueSuffix: opts.UniqueSuffix,
		clock:        clock,
	}
}

// Acquire creates the workspace directory of an invocation. An existing directory is reused as is.
func (p *preparer) Acquire(actionName string) (*Workspace, error) {
	exists, rootInfo := utils.FileExists(p.root)
	if !exists {
		return nil, faults.Newf(faults.Filesystem, "workspace root does not exist: %s", p.root)
	}
	if ok, err := utils.IsDirAndWritable(p.root, rootInfo); !ok {
		return nil, faults.Wrap(faults.Filesystem, err, "workspace root is not usable")
	}

	suffix := ""
	if p.uniqueSuffix {
		suffix = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	path := filepath.Join(p.root, naming.WorkspaceDirName(actionName, p.clock().Unix(), suffix))

	if !utils.IsDirPath(path) {
		log.Infof("creating a temporary directory to hold action data at %s", path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, faults.Wrap(faults.Filesystem, err, fmt.Sprintf("failed to create workspace %s", path))
	}

	return &Workspace{
		Path: path,
		keep: p.keep,
	}, nil
}

// Join returns the path of the given elements inside the workspace.
func (w *Workspace) Join(elem ...string) string {
	return filepath.Join(append([]string{w.Path}, elem...)...)
}

// Rel returns the path relative to the workspace root.
func (w *Workspace) Rel(target string) (string, error) {
	rel, err := filepath.Rel(w.Path, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s is outside of the workspace", target)
	}
	return filepath.ToSlash(rel), nil
}

// Release removes the workspace unless it was requested to be kept.
func (w *Workspace) Release() {
	if w.keep {
		log.Infof("keeping workspace at %s", w.Path)
		return
	}
	if err := os.RemoveAll(w.Path); err != nil {
		log.Warnf("failed to remove workspace %s: %v", w.Path, err)
		return
	}
	log.Debugf("removed workspace %s", w.Path)
}
