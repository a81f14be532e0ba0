package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/config"
	"siteline/internal/domain"
	"siteline/internal/notify"
)

func TestOpenBootstrapsAdmin(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger, err := NewLogger(&logs, "debug", "json")
	require.NoError(t, err)

	rt, err := Open(ctx, t.TempDir(), config.Default(), logger)
	require.NoError(t, err)
	defer rt.Close()

	admin, err := ResolveActor(ctx, rt.Engine, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, admin.Role)

	_, err = ResolveActor(ctx, rt.Engine, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ResolveActor(ctx, rt.Engine, " ")
	assert.Error(t, err)
}

func TestSinksFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Log = false
	sink, closeFn, err := Sinks(cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, notify.Nop{}, sink)

	cfg.Notify.Log = true
	sink, _, err = Sinks(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, notify.Log{}, sink)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "auto")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", "json")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}
