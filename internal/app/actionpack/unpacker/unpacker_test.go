package unpacker

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/dennishilgert/actionpack/internal/app/actionpack/workspace"
	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name    string
	content string
}

func zipBase64(t *testing.T, entries ...entry) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()

	ws, err := workspace.NewPreparer(workspace.Options{Root: t.TempDir(), UniqueSuffix: true}).Acquire("demo")
	require.NoError(t, err)
	return ws
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUnpack_ExtractsArchive(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	data := zipBase64(t,
		entry{"requirements.txt", "requests\n"},
		entry{"__main__.py", "def main(args):\n    return args\n"},
		entry{"lib/helper.py", "X = 1\n"},
	)

	payload, err := NewUnpacker().Unpack(ws, "demo", data)
	require.NoError(t, err)
	require.Equal(t, []string{"requirements.txt", "__main__.py", "lib/helper.py"}, payload.Members)
	require.Equal(t, filepath.Join(ws.Path, "requirements.txt"), payload.ManifestPath)

	content, err := os.ReadFile(ws.Join("lib", "helper.py"))
	require.NoError(t, err)
	require.Equal(t, "X = 1\n", string(content))

	// The intermediate zip is gone.
	require.NoFileExists(t, ws.Join("demo-tmp.zip"))
}

func TestUnpack_EmptyArchive(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)

	_, err := NewUnpacker().Unpack(ws, "demo", zipBase64(t))
	require.True(t, faults.Is(err, faults.Archive))
	require.Equal(t, EmptyArchiveMessage, faults.Message(err))
}

func TestUnpack_MissingManifestExtractsNothing(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	data := zipBase64(t, entry{"main.py", "print(1)\n"}, entry{"data.json", "{}"})

	_, err := NewUnpacker().Unpack(ws, "demo", data)
	require.True(t, faults.Is(err, faults.Archive))
	require.Equal(t, MissingManifestMessage, faults.Message(err))

	// Only the intermediate zip was written, nothing was extracted.
	require.Equal(t, []string{"demo-tmp.zip"}, dirEntries(t, ws.Path))
}

func TestUnpack_NestedManifestDoesNotCount(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	data := zipBase64(t, entry{"src/requirements.txt", "requests\n"})

	_, err := NewUnpacker().Unpack(ws, "demo", data)
	require.Equal(t, MissingManifestMessage, faults.Message(err))
}

func TestUnpack_NotAZip(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	data := base64.StdEncoding.EncodeToString([]byte("definitely not a zip archive"))

	_, err := NewUnpacker().Unpack(ws, "demo", data)
	require.True(t, faults.Is(err, faults.Archive))
	require.Equal(t, "Failed to open a zip file: "+ws.Join("demo-tmp.zip"), faults.Message(err))
}

func TestUnpack_MalformedBase64(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)

	_, err := NewUnpacker().Unpack(ws, "demo", "%%% not base64 %%%")
	require.True(t, faults.Is(err, faults.Archive))
	require.Contains(t, faults.Message(err), "Failed to decode action data")
}

func TestUnpack_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	data := zipBase64(t,
		entry{"requirements.txt", ""},
		entry{"../../escaped.py", "import os\n"},
	)

	_, err := NewUnpacker().Unpack(ws, "demo", data)
	require.True(t, faults.Is(err, faults.Archive))
	require.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(ws.Path)), "escaped.py"))
	// Entries are validated before any file is written.
	require.NoFileExists(t, ws.Join("requirements.txt"))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	raw, err := decode("aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "hello", string(raw))

	// Unpadded and wrapped input is accepted.
	raw, err = decode("aGVs\nbG8")
	require.NoError(t, err)
	require.Equal(t, "hello", string(raw))
}
