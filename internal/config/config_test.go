package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COTRACKER_CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cotracker.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "local", cfg.Backup.Store)
	assert.Equal(t, "db", cfg.Backup.KeyPrefix)
	assert.Equal(t, []string{"pilots.json", "checkouts.json"}, cfg.Backup.Compare)
	assert.Equal(t, time.Duration(0), cfg.Backup.Interval)
	assert.Equal(t, 7, cfg.Backup.PastDays)
	assert.Equal(t, 1, cfg.Backup.FutureDays)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `db_path: /var/lib/cotracker/app.db
log:
  level: debug
  format: json
backup:
  store: gcs
  bucket: mission-backups
  interval: 24h
  recipients:
    - age1testrecipient
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("COTRACKER_CONFIG_PATH", path)
	t.Setenv("COTRACKER_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cotracker/app.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gcs", cfg.Backup.Store)
	assert.Equal(t, "mission-backups", cfg.Backup.Bucket)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
	assert.Equal(t, []string{"age1testrecipient"}, cfg.Backup.Recipients)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBPath: "app.db",
			HTTP:   HTTPConfig{Addr: ":8080"},
			Log:    LogConfig{Level: "info", Format: "text"},
			Backup: BackupConfig{Store: "local", LocalDir: "backups"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing db path", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"gcs without bucket", func(c *Config) { c.Backup.Store = "gcs" }, "backup.bucket"},
		{"unknown store", func(c *Config) { c.Backup.Store = "s3" }, "invalid backup store"},
		{"negative interval", func(c *Config) { c.Backup.Interval = -time.Second }, "backup.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
