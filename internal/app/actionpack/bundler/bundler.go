package bundler

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/installer"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/defers"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/utils"
	"github.com/klauspost/compress/zip"
)

var log = logger.NewLogger("actionpack.bundler")

// Directory names dropped from package directories when test pruning is enabled.
var testDirNames = map[string]bool{"test": true, "tests": true}

type Options struct {
	// PruneTests drops test and tests directories from the bundled packages.
	PruneTests bool
}

// Input is everything the assembler needs from the earlier pipeline stages.
type Input struct {
	Workspace    *workspace.Workspace
	ActionName   string
	Members      []string
	ManifestPath string
	Environment  *installer.Environment
}

type Bundler interface {
	// Assemble writes the action bundle and returns its path.
	Assemble(input Input) (string, error)
}

type bundler struct {
	pruneTests bool
}

// NewBundler creates a new Bundler.
func NewBundler(opts Options) Bundler {
	return &bundler{
		pruneTests: opts.PruneTests,
	}
}

func (b *bundler) Assemble(input Input) (string, error) {
	ws := input.Workspace
	bundlePath := ws.Join(naming.BundleArchiveName(input.ActionName))
	log.Infof("creating action zip file at %s", bundlePath)

	cleanup := defers.NewDefers()
	defer cleanup.CallAll()

	out, err := os.Create(bundlePath)
	if err != nil {
		return "", faults.Wrap(faults.Filesystem, err, "failed to create action zip file")
	}
	cleanup.Add(func() {
		out.Close()
	})
	writer := zip.NewWriter(out)
	cleanup.Add(func() {
		writer.Close()
	})

	if err := b.addActivateScript(writer, ws, input.Environment); err != nil {
		return "", err
	}
	if err := b.addSources(writer, ws, input.Members); err != nil {
		return "", err
	}
	if err := b.addPackages(writer, ws, input.ManifestPath, input.Environment); err != nil {
		return "", err
	}

	// Close explicitly so write errors are not lost in the deferred cleanup.
	cleanup.Trigger(false)
	if err := writer.Close(); err != nil {
		out.Close()
		return "", faults.Wrap(faults.Filesystem, err, "failed to finalize action zip file")
	}
	if err := out.Close(); err != nil {
		return "", faults.Wrap(faults.Filesystem, err, "failed to close action zip file")
	}
	return bundlePath, nil
}

func (b *bundler) addActivateScript(writer *zip.Writer, ws *workspace.Workspace, env *installer.Environment) error {
	rel, err := ws.Rel(env.ActivateScript)
	if err != nil {
		return faults.Wrap(faults.Filesystem, err, "activation script is not inside the workspace")
	}
	log.Infof("adding activate script %s", rel)
	if err := utils.AddFileToZip(writer, env.ActivateScript, rel); err != nil {
		return faults.Wrap(faults.Filesystem, err, "failed to add activation script")
	}
	return nil
}

// addSources adds the .py members of the action archive at their original path.
func (b *bundler) addSources(writer *zip.Writer, ws *workspace.Workspace, members []string) error {
	for _, member := range members {
		if !strings.EqualFold(filepath.Ext(member), ".py") {
			continue
		}
		memberPath := ws.Join(member)
		if !utils.IsRegularFile(memberPath) {
			continue
		}
		log.Infof("adding python file %s", member)
		if err := utils.AddFileToZip(writer, memberPath, member); err != nil {
			return faults.Wrap(faults.Filesystem, err, fmt.Sprintf("failed to add python file %s", member))
		}
	}
	return nil
}

// addPackages adds the site-packages directory of every manifest entry that has one.
func (b *bundler) addPackages(writer *zip.Writer, ws *workspace.Workspace, manifestPath string, env *installer.Environment) error {
	packages, err := ReadPackageNames(manifestPath)
	if err != nil {
		return faults.Wrap(faults.Filesystem, err, "failed to read requirements file")
	}
	if len(packages) == 0 {
		return nil
	}

	sitePackages, err := findSitePackages(env.Root)
	if err != nil {
		return err
	}
	log.Debugf("site package dir %s", sitePackages)

	for _, pkg := range packages {
		packageDir := filepath.Join(sitePackages, pkg)
		if !utils.IsDirPath(packageDir) {
			log.Debugf("no package directory for %s, skipping", pkg)
			continue
		}
		rel, _ := ws.Rel(packageDir)
		log.Infof("adding package dir %s", rel)
		if err := b.addPackageDir(writer, ws, packageDir); err != nil {
			return err
		}
	}
	return nil
}

func (b *bundler) addPackageDir(writer *zip.Writer, ws *workspace.Workspace, packageDir string) error {
	return filepath.WalkDir(packageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return faults.Wrap(faults.Filesystem, err, "failed to walk package directory")
		}
		if d.IsDir() {
			if b.pruneTests && path != packageDir && testDirNames[d.Name()] {
				log.Debugf("pruning test directory %s", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := ws.Rel(path)
		if err != nil {
			return faults.Wrap(faults.Filesystem, err, "package file is not inside the workspace")
		}
		log.Debugf("file added: %s", rel)
		if err := utils.AddFileToZip(writer, path, rel); err != nil {
			return faults.Wrap(faults.Filesystem, err, fmt.Sprintf("failed to add package file %s", rel))
		}
		return nil
	})
}

// findSitePackages returns the first site-packages directory of the environment.
func findSitePackages(envDir string) (string, error) {
	matches, err := filepath.Glob(naming.SitePackagesPattern(envDir))
	if err != nil {
		return "", faults.Wrap(faults.Filesystem, err, "invalid site-packages pattern")
	}
	for _, match := range matches {
		if utils.IsDirPath(match) {
			return match, nil
		}
	}
	return "", faults.Newf(faults.Filesystem, "no site-packages directory found in %s", envDir)
}

// ReadPackageNames returns the lookup name of every non-empty manifest line: the text
// before the first whitespace, taken as is.
func ReadPackageNames(manifestPath string) ([]string, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	names := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
