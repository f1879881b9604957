package unpacker

import (
	"encoding/base64"
	"os"
	"slices"
	"strings"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/dennishilgert/actionpack/pkg/utils"
	"github.com/klauspost/compress/zip"
)

var log = logger.NewLogger("actionpack.unpacker")

const (
	EmptyArchiveMessage         = "action data zip content is empty, please specify a valid base64 encoded action data"
	MissingManifestMessage      = "Error: Requirements file does not exist in action data payload, please add requirements.txt file"
	ManifestNotExtractedMessage = "Error: Action data did not have requirements.txt file."
)

// Payload is the result of unpacking the action data into the workspace.
type Payload struct {
	// Members lists the entry names of the action archive.
	Members []string

	// ManifestPath is the path of the extracted requirements file.
	ManifestPath string
}

type Unpacker interface {
	Unpack(ws *workspace.Workspace, actionName string, actionData string) (*Payload, error)
}

type unpacker struct{}

// NewUnpacker creates a new Unpacker.
func NewUnpacker() Unpacker {
	return &unpacker{}
}

// Unpack decodes the base64 action data, extracts it into the workspace and verifies the manifest.
func (u *unpacker) Unpack(ws *workspace.Workspace, actionName string, actionData string) (*Payload, error) {
	raw, err := decode(actionData)
	if err != nil {
		return nil, faults.Wrap(faults.Archive, err, "Failed to decode action data: "+err.Error())
	}

	zipFile := ws.Join(naming.SourceArchiveName(actionName))
	log.Infof("creating a temporary zip file: %s", zipFile)
	if err := os.WriteFile(zipFile, raw, 0644); err != nil {
		return nil, faults.Wrap(faults.Filesystem, err, "failed to write action data to "+zipFile)
	}

	members, err := u.extract(ws, zipFile)
	if err != nil {
		return nil, err
	}

	manifestPath := ws.Join(naming.ManifestFileName)
	if !utils.IsRegularFile(manifestPath) {
		return nil, faults.New(faults.Archive, ManifestNotExtractedMessage)
	}

	if !utils.IsRegularFile(zipFile) {
		return nil, faults.Newf(faults.Filesystem, "Error: %s file not found", zipFile)
	}
	if err := os.Remove(zipFile); err != nil {
		return nil, faults.Wrap(faults.Filesystem, err, "failed to remove temporary zip file "+zipFile)
	}
	log.Infof("deleted a temporary zip file at %s", zipFile)

	return &Payload{
		Members:      members,
		ManifestPath: manifestPath,
	}, nil
}

func (u *unpacker) extract(ws *workspace.Workspace, zipFile string) ([]string, error) {
	archive, err := zip.OpenReader(zipFile)
	if err != nil {
		return nil, faults.Wrap(faults.Archive, err, "Failed to open a zip file: "+zipFile)
	}
	defer archive.Close()

	members := make([]string, 0, len(archive.File))
	for _, f := range archive.File {
		members = append(members, f.Name)
	}
	if len(members) == 0 {
		return nil, faults.New(faults.Archive, EmptyArchiveMessage)
	}
	if !slices.Contains(members, naming.ManifestFileName) {
		return nil, faults.New(faults.Archive, MissingManifestMessage)
	}

	if err := utils.Unzip(&archive.Reader, ws.Path); err != nil {
		return nil, faults.Wrap(faults.Archive, err, "Failed to extract action data: "+err.Error())
	}
	log.Infof("done extracting zip file at %s", ws.Path)
	log.Debugf("action archive members: %v", members)

	return members, nil
}

// decode accepts standard base64 with or without padding and ignores embedded line breaks.
func decode(data string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, data)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err == nil {
		return raw, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
