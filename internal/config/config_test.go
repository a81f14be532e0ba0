package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "admin", cfg.Bootstrap.AdminID)
	assert.Equal(t, "siteline", cfg.Notify.SubjectPrefix)
	assert.EqualValues(t, 10<<20, cfg.Evidence.MaxBytes)
	assert.Empty(t, cfg.Webhooks)
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("auth:\n  jwt_secret: s3cret\n  dev_login: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.DevLogin)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad level":     "log:\n  level: loud\n",
		"bad format":    "log:\n  format: xml\n",
		"base path":     "server:\n  base_path: api\n",
		"max bytes":     "evidence:\n  max_bytes: 0\n",
		"webhook id":    "webhooks:\n  - url: http://x\n",
		"webhook url":   "webhooks:\n  - id: a\n    url: ftp://x\n",
		"duplicate ids": "webhooks:\n  - id: a\n    url: http://x\n  - id: a\n    url: http://y\n",
		"empty event":   "webhooks:\n  - id: a\n    url: http://x\n    events: [\"\"]\n",
		"not yaml":      "server: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "siteline config init")

	require.NoError(t, os.WriteFile(Path(dir), []byte("server:\n  addr: :9000\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	cfg, err = FromFile(filepath.Join(dir, "siteline.yml"))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestEvidenceDir(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("ws", ".siteline", "evidence"), cfg.EvidenceDir("ws"))
	cfg.Evidence.Dir = "/var/siteline"
	assert.Equal(t, "/var/siteline", cfg.EvidenceDir("ws"))
}
