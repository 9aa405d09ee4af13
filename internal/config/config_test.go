package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 0.0.0.0:9000
header_source: chromium
smtp:
  host: smtp.example.com
  from: kitchen@example.com
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "http://0.0.0.0:9000", cfg.PublicURL)
	assert.Equal(t, 0.20, cfg.HeaderProportion)
	assert.Equal(t, HeaderSourceAsset, cfg.HeaderSource)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "0 9 * * *", cfg.CheckCron)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsHeaderProportionOutOfRange(t *testing.T) {
	for _, v := range []string{"1.7", "-0.1", ".nan"} {
		t.Run(v, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte("header_proportion: "+v+"\n"), 0o600))

			_, err := Load(path)
			assert.ErrorContains(t, err, "header_proportion")
		})
	}
}

func TestLoadKeepsHeaderProportion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("header_proportion: 1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.HeaderProportion)
}

func TestLoadRejectsHalfBasicAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("basic_auth:\n  username: admin\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "basic_auth")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.HeaderProportion = 0.12
	cfg.HeaderSource = HeaderSourceRender
	cfg.Notify.Slack.Channel = "#kitchen"

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MENUCAL_SMTP_HOST":           "mail.internal",
		"MENUCAL_SMTP_PORT":           "2525",
		"MENUCAL_SMTP_PASSWORD":       "s3cret",
		"MENUCAL_SLACK_TOKEN":         "xoxb-1",
		"MENUCAL_BASIC_AUTH_USERNAME": "admin",
		"MENUCAL_BASIC_AUTH_PASSWORD": "pw",
		"MENUCAL_DATA_DIR":            "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "mail.internal", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.Equal(t, "xoxb-1", cfg.Notify.Slack.Token)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "./var/data", cfg.DataDir)
}
