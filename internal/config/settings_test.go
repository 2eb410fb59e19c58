package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, SourceYAML, s.Catalog.Source)
	assert.True(t, s.Cache.Enabled)
	assert.Equal(t, "info", s.Log.Level)
	assert.NoError(t, NewInputParser().ValidateSettings(&s))
}

func TestInputParser_LoadSettings(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		s, err := NewInputParser().LoadSettings("nonexistent.yaml")
		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "failed to read file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFile(t, "settings.yaml", "catalog: [unclosed")
		_, err := NewInputParser().LoadSettings(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeFile(t, "settings.yaml", `
catalog:
  source: sqlite
  db: /var/lib/kepay/catalog.db
log:
  level: debug
`)
		s, err := NewInputParser().LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, SourceSQLite, s.Catalog.Source)
		assert.Equal(t, "/var/lib/kepay/catalog.db", s.Catalog.DB)
		assert.Equal(t, "debug", s.Log.Level)
		assert.True(t, s.Cache.Enabled, "cache default survives")
		assert.Equal(t, 4, s.Batch.Concurrency)
	})

	t.Run("fixture", func(t *testing.T) {
		s, err := NewInputParser().LoadSettings("../../testdata/kepay.yaml")
		require.NoError(t, err)
		assert.Equal(t, SourceYAML, s.Catalog.Source)
	})
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:    "unknown source",
			mutate:  func(s *Settings) { s.Catalog.Source = "postgres" },
			wantErr: `unknown catalog source "postgres"`,
		},
		{
			name:    "yaml without path",
			mutate:  func(s *Settings) { s.Catalog.Path = "" },
			wantErr: "catalog path is required",
		},
		{
			name:    "sqlite without db",
			mutate:  func(s *Settings) { s.Catalog.Source = SourceSQLite; s.Catalog.DB = "" },
			wantErr: "catalog db is required",
		},
		{
			name:    "bad log level",
			mutate:  func(s *Settings) { s.Log.Level = "verbose" },
			wantErr: `unknown log level "verbose"`,
		},
		{
			name:    "negative concurrency",
			mutate:  func(s *Settings) { s.Batch.Concurrency = -1 },
			wantErr: "batch concurrency cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := NewInputParser().ValidateSettings(&s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingsPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/kepay.yaml")
	assert.Equal(t, "flag.yaml", SettingsPath("flag.yaml"))
	assert.Equal(t, "/etc/kepay.yaml", SettingsPath(""))
}

func TestResolve(t *testing.T) {
	t.Run("defaults when nothing is set", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvDB, "")
		s, err := NewInputParser().Resolve("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), *s)
	})

	t.Run("env db overrides file", func(t *testing.T) {
		path := writeFile(t, "settings.yaml", "catalog:\n  source: sqlite\n  db: file.db\n")
		t.Setenv(EnvConfig, path)
		t.Setenv(EnvDB, "env.db")
		s, err := NewInputParser().Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "env.db", s.Catalog.DB)
	})

	t.Run("bad file surfaces", func(t *testing.T) {
		t.Setenv(EnvDB, "")
		_, err := NewInputParser().Resolve("missing.yaml")
		assert.Error(t, err)
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KEPAY_DB=from-dotenv.db\n"), 0644))

	// register cleanup, then clear so the file value can land
	t.Setenv(EnvDB, "placeholder")
	require.NoError(t, os.Unsetenv(EnvDB))

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-dotenv.db", os.Getenv(EnvDB))

	t.Setenv(EnvDB, "already-set.db")
	require.NoError(t, LoadEnv(envFile))
	assert.Equal(t, "already-set.db", os.Getenv(EnvDB), "existing variables win")
}
