package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func TestAcquire_CreatesTimestampedDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := NewPreparer(Options{Root: root, Clock: fixedClock})

	ws, err := p.Acquire("demo")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "demo-1700000000"), ws.Path)
	require.DirExists(t, ws.Path)
}

func TestAcquire_ExistingDirectoryIsReused(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := NewPreparer(Options{Root: root, Clock: fixedClock, Keep: true})

	first, err := p.Acquire("demo")
	require.NoError(t, err)
	stale := filepath.Join(first.Path, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	// Same second without suffix: same path, stale content stays.
	second, err := p.Acquire("demo")
	require.NoError(t, err)
	require.Equal(t, first.Path, second.Path)
	require.FileExists(t, stale)
}

func TestAcquire_UniqueSuffixAvoidsCollision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := NewPreparer(Options{Root: root, Clock: fixedClock, UniqueSuffix: true})

	first, err := p.Acquire("demo")
	require.NoError(t, err)
	second, err := p.Acquire("demo")
	require.NoError(t, err)

	require.NotEqual(t, first.Path, second.Path)
	require.Regexp(t, `demo-1700000000-[0-9a-f]{8}$`, first.Path)
}

func TestAcquire_MissingRoot(t *testing.T) {
	t.Parallel()

	p := NewPreparer(Options{Root: filepath.Join(t.TempDir(), "missing")})

	_, err := p.Acquire("demo")
	require.True(t, faults.Is(err, faults.Filesystem))
}

func TestRelease(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	ws, err := NewPreparer(Options{Root: root, UniqueSuffix: true}).Acquire("demo")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.Join("main.py"), []byte("print(1)"), 0644))
	ws.Release()
	require.NoDirExists(t, ws.Path)

	kept, err := NewPreparer(Options{Root: root, UniqueSuffix: true, Keep: true}).Acquire("demo")
	require.NoError(t, err)
	kept.Release()
	require.DirExists(t, kept.Path)
}

func TestRel(t *testing.T) {
	t.Parallel()

	ws := &Workspace{Path: "/tmp/demo-1"}

	rel, err := ws.Rel("/tmp/demo-1/virtualenv/bin/activate_this.py")
	require.NoError(t, err)
	require.Equal(t, "virtualenv/bin/activate_this.py", rel)

	_, err = ws.Rel("/etc/passwd")
	require.Error(t, err)
}
