package migrate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindline/internal/db"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: filepath.Join(t.TempDir(), "ws")})
	require.NoError(t, err)
	defer conn.Close()

	v, err := Current(conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, Migrate(conn.DB))
	require.NoError(t, Migrate(conn.DB))

	latest, err := Latest()
	require.NoError(t, err)
	v, err = Current(conn.DB)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	for _, table := range []string{"users", "manager_links", "tasks", "task_events", "relay_cursors"} {
		var n int
		require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table))
		assert.Equal(t, 1, n, table)
	}
}
