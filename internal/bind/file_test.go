package bind

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TortugaLabs/ashlib/internal/diag"
	"github.com/TortugaLabs/ashlib/internal/model"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBindFileWrites(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"a.sh": "a\n"})
	path := writeFile(t, f.root, "main.sh", "###$_include: a.sh\n")
	require.NoError(t, os.Chmod(path, 0o755))

	changed, err := f.engine(Options{}).BindFile(path, FileOptions{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "###$_begin-include: a.sh\na\n###$_end-include: a.sh\n", readFile(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	changed, err = f.engine(Options{}).BindFile(path, FileOptions{})
	require.NoError(t, err)
	assert.False(t, changed, "already bound")
}

func TestBindFileLocalSnippet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"a.sh": "from lib\n"})
	sub := filepath.Join(f.root, "sub")
	writeFile(t, sub, "a.sh", "from sub\n")
	path := writeFile(t, sub, "main.sh", "###$_include: a.sh\n")

	_, err := f.engine(Options{}).BindFile(path, FileOptions{})
	require.NoError(t, err)
	assert.Contains(t, readFile(t, path), "from sub\n")
}

func TestBindFileDryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"a.sh": "a\n"})
	path := writeFile(t, f.root, "main.sh", "###$_include: a.sh\n")

	changed, err := f.engine(Options{}).BindFile(path, FileOptions{DryRun: true, Backup: "~"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "###$_include: a.sh\n", readFile(t, path))
	assert.NoFileExists(t, path+"~")
}

func TestBindFileForce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	path := writeFile(t, f.root, "plain.sh", "echo hi\n")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	changed, err := f.engine(Options{}).BindFile(path, FileOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, changed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(old), "forced write touches the file")
}

func TestBindFileBackup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{"a.sh": "a\n"})
	path := writeFile(t, f.root, "main.sh", "###$_include: a.sh\n")
	writeFile(t, f.root, "main.sh.bak", "stale backup\n")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	changed, err := f.engine(Options{}).BindFile(path, FileOptions{Backup: ".bak"})
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "###$_include: a.sh\n", readFile(t, path+".bak"))
	info, err := os.Stat(path + ".bak")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "backup keeps the original mtime")
}

func TestBindFileUnchangedNoBackup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	path := writeFile(t, f.root, "plain.sh", "echo hi\n")

	changed, err := f.engine(Options{}).BindFile(path, FileOptions{Backup: "~"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoFileExists(t, path+"~")
}

func TestBindFileErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	e := f.engine(Options{})

	_, err := e.BindFile(filepath.Join(f.root, "missing.sh"), FileOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	bin := writeFile(t, f.root, "blob", "\x00\xff\xfe")
	_, err = e.BindFile(bin, FileOptions{})
	assert.ErrorIs(t, err, model.ErrBinary)
}

func TestBindFileCheckSyntax(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]string{
		"broken.sh": "if true; then\n",
		"good.sh":   "echo ok\n",
	})
	bad := writeFile(t, f.root, "bad.sh", "###$_include: broken.sh\n")
	good := writeFile(t, f.root, "good_main.sh", "###$_include: good.sh\n")
	text := writeFile(t, f.root, "notes.txt", "###$_include: broken.sh\n")

	e := f.engine(Options{CheckSyntax: true})

	_, err := e.BindFile(good, FileOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.diag.Diagnostics)

	_, err = e.BindFile(text, FileOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.diag.Diagnostics, "unknown languages are not checked")

	_, err = e.BindFile(bad, FileOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, f.diag.Diagnostics)
	for _, d := range f.diag.Diagnostics {
		assert.Equal(t, diag.Syntax, d.Kind)
		assert.Equal(t, bad, d.File)
	}
}
