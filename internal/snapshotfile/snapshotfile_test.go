package snapshotfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/icloud-go/internal/icloud"
)

func TestLoad_FileNotFound(t *testing.T) {
	snap, err := Load("/nonexistent/path/session.json")
	assert.Nil(t, snap)
	assert.NoError(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	original := icloud.NewSessionData()
	original.SessionID = "sid-1"
	original.SessionToken = "tok-1"
	original.AccountCountry = "USA"
	original.Cookies["X-APPLE-WEBAUTH-USER"] = "v1"
	original.Cookies["X-APPLE-WEBAUTH-TOKEN"] = "v2"
	original.WebServices["drive"] = icloud.ServiceInfo{URL: "https://p42-drivews.icloud.com"}

	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSave_Permissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, Save(path, icloud.NewSessionData()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "session.json")

	require.NoError(t, Save(path, icloud.NewSessionData()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSave_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	first := icloud.NewSessionData()
	first.SessionToken = "old"
	require.NoError(t, Save(path, first))

	second := icloud.NewSessionData()
	second.SessionToken = "new"
	require.NoError(t, Save(path, second))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.SessionToken)

	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoad_MissingOAuthState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"cookies":[]}`), 0o600))

	snap, err := Load(path)
	assert.Nil(t, snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing oauth_state")
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	snap, err := Load(path)
	assert.Nil(t, snap)
	assert.Error(t, err)
}

func TestRemove_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, Save(path, icloud.NewSessionData()))
	require.NoError(t, Remove(path))
	assert.NoError(t, Remove(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
