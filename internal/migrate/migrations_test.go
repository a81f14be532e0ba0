package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	current, latest, err := Status(conn)
	require.NoError(t, err)
	assert.Equal(t, latest, current)
	assert.Equal(t, 2, latest)
}

func TestStatusBeforeMigrate(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	current, latest, err := Status(conn)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.Positive(t, latest)
}

func TestSeededRolePermissions(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, Migrate(conn))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM role_permissions WHERE role_id='WORKER' AND permission_id='structure.write'`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM role_permissions WHERE role_id='ESTIMATOR' AND permission_id='template.write'`).Scan(&n))
	assert.Equal(t, 1, n)
}
