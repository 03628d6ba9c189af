package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m, err := Load(path)
	require.NoError(t, err)

	m.Set("a.go", HashContent([]byte("hello")))
	require.NoError(t, m.Save())

	m2, err := Load(path)
	require.NoError(t, err)
	h, ok := m2.Get("a.go")
	require.True(t, ok)
	assert.Equal(t, HashContent([]byte("hello")), h)
}

func TestUnchangedDetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	m.Set("a.go", HashContent([]byte("v1")))
	assert.True(t, m.Unchanged("a.go", []byte("v1")))
	assert.False(t, m.Unchanged("a.go", []byte("v2")))
}

func TestDeleteRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	m.Set("a.go", "h")
	m.Delete("a.go")
	_, ok := m.Get("a.go")
	assert.False(t, ok)
}

func TestSaveSkipsWriteWhenClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	m, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, m.Save()) // nothing dirty, nothing written

	_, statErr := os.Stat(path)
	assert.Error(t, statErr)
}
