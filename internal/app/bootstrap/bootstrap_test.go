package bootstrap

import (
	"context"
	stdsql "database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-filehub/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-filehub/pkg/config"
)

func newBootstrapper(t *testing.T, ini string) (*Bootstrapper, *stdsql.DB) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(cfgPath, []byte(ini), 0o644))
	cfg, err := config.NewConfigFromFile(cfgPath)
	require.NoError(t, err)

	db, err := stdsql.Open("sqlite3", database.SQLiteDSN(filepath.Join(dir, "boot.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	drv, err := database.NewDriver(db, "sqlite", false)
	require.NoError(t, err)

	b := NewBootstrapper(db, drv, "sqlite", cfg)
	require.NoError(t, b.InitializeDatabase(context.Background()))
	return b, db
}

func TestIDSeedIsGeneratedOnceAndPersisted(t *testing.T) {
	b, _ := newBootstrapper(t, "[System]\n")
	ctx := context.Background()

	first, err := b.IDSeed(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := b.IDSeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIDSeedCompatModeWithExistingRecords(t *testing.T) {
	b, db := newBootstrapper(t, "[System]\n")
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO distribution_records
		(filename, mime_type, size, hash, storage_type, storage_file_id, uploaded_by, category, created_at, updated_at)
		VALUES ('a.pdf', 'application/pdf', 1, 'h', 'local', 'f', 'pub', 'document', 1, 1)`)
	require.NoError(t, err)

	seed, err := b.IDSeed(ctx)
	require.NoError(t, err)
	assert.Empty(t, seed)
}

func TestConfigOverridesStoredValues(t *testing.T) {
	b, _ := newBootstrapper(t, "[System]\nIDSeed = from-config\nJWTSecret = portal-secret\n")
	ctx := context.Background()

	seed, err := b.IDSeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-config", seed)

	secret, err := b.JWTSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("portal-secret"), secret)
}

func TestJWTSecretGeneratedWhenMissing(t *testing.T) {
	b, _ := newBootstrapper(t, "[System]\n")
	ctx := context.Background()

	first, err := b.JWTSecret(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := b.JWTSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
