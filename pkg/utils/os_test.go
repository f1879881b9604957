package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func TestSecureJoin(t *testing.T) {
	base := filepath.Join("/tmp", "workspace")

	target, err := SecureJoin(base, "lib/module.py")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "lib", "module.py"), target)

	target, err = SecureJoin(base, "lib/../main.py")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "main.py"), target)

	for _, name := range []string{"../escape.py", "/etc/passwd", "lib/../../escape.py"} {
		_, err := SecureJoin(base, name)
		require.Error(t, err, name)
	}
}

func TestUnzip_RejectsEscapingEntriesBeforeWriting(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, name := range []string{"main.py", "../escape.py"} {
		w, err := writer.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("print('x')"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	dest := t.TempDir()
	require.Error(t, Unzip(archive, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAddFileToZip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(src, []byte("def main(args):\n    return args\n"), 0644))

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	require.NoError(t, AddFileToZip(writer, src, "main.py"))
	require.NoError(t, writer.Close())

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, archive.File, 1)
	require.Equal(t, "main.py", archive.File[0].Name)
	require.Equal(t, zip.Deflate, archive.File[0].Method)
}
