// Package testutil provides fixtures shared by the package tests: action archives and
// stand-ins for the virtualenv and pip commands.
package testutil

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// PythonVersionDir is the lib directory name the fake virtualenv creates.
const PythonVersionDir = "python3.11"

// Entry is a file of a test archive.
type Entry struct {
	Name    string
	Content string
}

// ZipBytes builds a zip archive from the entries in the given order.
func ZipBytes(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.Name)
		require.NoError(t, err)
		_, err = f.Write([]byte(e.Content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// ZipBase64 builds a base64 encoded zip archive from the entries.
func ZipBase64(t testing.TB, entries ...Entry) string {
	t.Helper()

	return base64.StdEncoding.EncodeToString(ZipBytes(t, entries...))
}

// ZippedFile is an entry read back from an archive.
type ZippedFile struct {
	Content string
	Method  uint16
}

// ReadZip returns the entries of the archive at path keyed by name.
func ReadZip(t testing.TB, path string) map[string]ZippedFile {
	t.Helper()

	archive, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer archive.Close()

	return readEntries(t, &archive.Reader)
}

// ReadZipBase64 decodes a base64 archive and returns its entries keyed by name.
func ReadZipBase64(t testing.TB, data string) map[string]ZippedFile {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	return readEntries(t, reader)
}

func readEntries(t testing.TB, reader *zip.Reader) map[string]ZippedFile {
	files := map[string]ZippedFile{}
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = ZippedFile{Content: string(content), Method: f.Method}
	}
	return files
}

// Names returns the sorted keys of the entries.
func Names(files map[string]ZippedFile) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const fakeVirtualenv = `#!/bin/sh
set -e
for dir in "$@"; do :; done
mkdir -p "$dir/bin" "$dir/lib/` + PythonVersionDir + `/site-packages"
echo "# activation stub" > "$dir/bin/activate_this.py"
`

const fakePip = `#!/bin/sh
set -e
prefix=""
req=""
while [ $# -gt 0 ]; do
  case "$1" in
    --prefix) prefix="$2"; shift 2 ;;
    -r) req="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ "$VIRTUAL_ENV" != "$prefix" ]; then
  echo "VIRTUAL_ENV is not the install prefix" >&2
  exit 3
fi
site="$prefix/lib/` + PythonVersionDir + `/site-packages"
while read -r pkg rest || [ -n "$pkg" ]; do
  case "$pkg" in
    ""|\#*) continue ;;
  esac
  name=$(echo "$pkg" | sed 's/[<>=!~;\[].*//')
  mkdir -p "$site/$name/sub"
  echo "# $name" > "$site/$name/__init__.py"
  echo "# $name sub" > "$site/$name/sub/module.py"
done < "$req"
`

const failingPip = `#!/bin/sh
echo "Collecting nope"
echo "ERROR: No matching distribution found for nope" >&2
exit 1
`

const slowPip = `#!/bin/sh
exec sleep 10
`

func writeScript(t testing.TB, dir string, name string, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

// FakeVirtualenv writes a virtualenv stand-in that creates the activation stub and site-packages.
func FakeVirtualenv(t testing.TB) string {
	t.Helper()

	return writeScript(t, t.TempDir(), "virtualenv", fakeVirtualenv)
}

// FakePip writes a pip stand-in that creates a package directory named after each
// requirement with its version specifier stripped.
func FakePip(t testing.TB) string {
	t.Helper()

	return writeScript(t, t.TempDir(), "pip", fakePip)
}

// FailingPip writes a pip stand-in that exits with status 1.
func FailingPip(t testing.TB) string {
	t.Helper()

	return writeScript(t, t.TempDir(), "pip", failingPip)
}

// SlowPip writes a pip stand-in that sleeps for ten seconds.
func SlowPip(t testing.TB) string {
	t.Helper()

	return writeScript(t, t.TempDir(), "pip", slowPip)
}
