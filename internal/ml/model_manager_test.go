package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelManager_AddActivateRollback(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir)
	require.NoError(t, err)
	assert.Nil(t, mm.GetCurrentVersion())

	first, err := mm.AddVersion(mm.BundlePath("11111111-a"), "11111111-a", ModelMetrics{CVMean: 0.51})
	require.NoError(t, err)
	second, err := mm.AddVersion(mm.BundlePath("22222222-b"), "22222222-b", ModelMetrics{CVMean: 0.55})
	require.NoError(t, err)

	versions := mm.ListVersions()
	require.Len(t, versions, 2)
	assert.Equal(t, second.Version, versions[0].Version, "newest first")

	require.NoError(t, mm.ActivateVersion(second.Version))
	current := mm.GetCurrentVersion()
	require.NotNil(t, current)
	assert.Equal(t, "22222222-b", current.RunID)
	assert.Equal(t, filepath.Join(dir, "model-22222222-b.json"), current.Path)

	require.NoError(t, mm.Rollback())
	assert.Equal(t, first.Version, mm.GetCurrentVersion().Version)

	assert.Error(t, mm.Rollback(), "nothing older than the first version")
	assert.Error(t, mm.ActivateVersion("does-not-exist"))

	// state survives a reload
	reloaded, err := NewModelManager(dir)
	require.NoError(t, err)
	assert.Len(t, reloaded.ListVersions(), 2)
	assert.Equal(t, first.Version, reloaded.GetCurrentVersion().Version)
}

func TestModelManager_RollbackNeedsTwoVersions(t *testing.T) {
	mm, err := NewModelManager(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, mm.Rollback())

	v, err := mm.AddVersion("a.json", "aaaaaaaa-1", ModelMetrics{})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion(v.Version))
	assert.Error(t, mm.Rollback())
}

func TestModelManager_CorruptVersionsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionsFileName), []byte("{broken"), 0o600))

	mm, err := NewModelManager(dir)
	require.NoError(t, err)
	assert.Empty(t, mm.ListVersions())
}

func TestModelManager_FailedSaveLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir)
	require.NoError(t, err)

	v, err := mm.AddVersion("a.json", "aaaaaaaa-1", ModelMetrics{})
	require.NoError(t, err)

	// a non-empty directory in place of the versions file makes every save fail
	versionsFile := filepath.Join(dir, versionsFileName)
	require.NoError(t, os.Remove(versionsFile))
	require.NoError(t, os.MkdirAll(filepath.Join(versionsFile, "child"), 0o755))

	_, err = mm.AddVersion("b.json", "bbbbbbbb-2", ModelMetrics{})
	require.Error(t, err)
	assert.Len(t, mm.ListVersions(), 1)

	require.Error(t, mm.ActivateVersion(v.Version))
	assert.Nil(t, mm.GetCurrentVersion())
}
