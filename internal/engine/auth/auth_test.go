package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/migrate"
)

func newService(t *testing.T) Service {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Service{DB: conn}
}

func TestRequire(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	require.NoError(t, s.Require(ctx, domain.Actor{ID: "e", Role: domain.RoleEstimator}, PermTemplateWrite))
	err := s.Require(ctx, domain.Actor{ID: "w", Role: domain.RoleWorker}, PermTemplateWrite)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	var fe ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, PermTemplateWrite, fe.Permission)
	assert.Equal(t, domain.RoleWorker, fe.Role)
}

func TestRolePermissions(t *testing.T) {
	s := newService(t)
	perms, err := s.RolePermissions(context.Background(), domain.RoleForeman)
	require.NoError(t, err)
	assert.Equal(t, []string{PermReviewQueue}, perms)
}

func TestCanSeeDrafts(t *testing.T) {
	assert.False(t, CanSeeDrafts(domain.RoleWorker))
	assert.False(t, CanSeeDrafts(domain.RoleForeman))
	assert.True(t, CanSeeDrafts(domain.RoleEstimator))
	assert.True(t, CanSeeDrafts(domain.RolePM))
}
