package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	writeFile(t, first, "a.sh", "first\n")
	writeFile(t, second, "a.sh", "second\n")
	writeFile(t, second, "b.sh", "b\n")

	sp := New(Options{Dirs: []string{first, second}})

	got, ok := sp.Find("a.sh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "a.sh"), got)

	got, ok = sp.Find("b.sh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "b.sh"), got)

	_, ok = sp.Find("c.sh")
	assert.False(t, ok)
}

func TestFindLocalFirst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	here := filepath.Join(root, "here")
	writeFile(t, lib, "a.sh", "lib\n")
	writeFile(t, here, "a.sh", "here\n")

	sp := New(Options{Dirs: []string{lib}})
	got, ok := sp.Find("a.sh", here)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(here, "a.sh"), got)
}

func TestFindScoped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	libdir := filepath.Join(root, "libdir")
	other := filepath.Join(root, "other")
	writeFile(t, libdir, "foo.sh", "scoped\n")
	writeFile(t, other, "LIB:foo.sh", "decoy\n")

	sp := New(Options{Dirs: []string{other, "LIB=" + libdir}})

	got, ok := sp.Find("LIB:foo.sh", other)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(libdir, "foo.sh"), got)

	got, ok = sp.Find("LIB:foo.sh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(libdir, "foo.sh"), got)

	// An unknown scope is an ordinary identifier.
	_, ok = sp.Find("NOPE:foo.sh")
	assert.False(t, ok)
}

func TestFindScopedFallsBack(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	libdir := filepath.Join(root, "libdir")
	other := filepath.Join(root, "other")
	require.NoError(t, os.MkdirAll(libdir, 0o755))
	writeFile(t, other, "LIB:bar.sh", "plain\n")

	sp := New(Options{Dirs: []string{"LIB=" + libdir, other}})
	got, ok := sp.Find("LIB:bar.sh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(other, "LIB:bar.sh"), got)
}

func TestNewSkipsBadEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	good := filepath.Join(root, "good")
	file := writeFile(t, root, "plain", "x\n")
	require.NoError(t, os.MkdirAll(good, 0o755))

	sp := New(Options{
		Dirs: []string{"", "X=", filepath.Join(root, "missing"), file, good},
		Env:  "::" + good,
	})
	assert.Equal(t, []string{good, good}, sp.Dirs())
	_, ok := sp.Scope("X")
	assert.False(t, ok)
}

func TestStdScope(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	std := filepath.Join(root, "std")
	writeFile(t, std, "pp.sh", "pp\n")

	sp := New(Options{StdDir: std})
	dir, ok := sp.Scope(StdScope)
	require.True(t, ok)
	assert.Equal(t, std, dir)

	got, ok := sp.Find("ASHLIB:pp.sh")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(std, "pp.sh"), got)

	sp = New(Options{StdDir: std, NoStd: true})
	assert.Empty(t, sp.Dirs())
	_, ok = sp.Find("pp.sh")
	assert.False(t, ok)
}

func TestEnvAfterDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cli := filepath.Join(root, "cli")
	env := filepath.Join(root, "env")
	std := filepath.Join(root, "std")
	for _, d := range []string{cli, env, std} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}

	sp := New(Options{Dirs: []string{cli}, Env: env, StdDir: std})
	assert.Equal(t, []string{cli, env, std}, sp.Dirs())
}

func TestFindIgnoresDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a.sh"), 0o755))

	sp := New(Options{Dirs: []string{root}})
	_, ok := sp.Find("a.sh")
	assert.False(t, ok)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
