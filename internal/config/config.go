package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server and the backup commands
type Config struct {
	DBPath string
	HTTP   HTTPConfig
	Log    LogConfig
	Backup BackupConfig
}

// HTTPConfig holds web server configuration
type HTTPConfig struct {
	Addr  string
	Realm string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// BackupConfig holds configuration for the backup and fetch commands
type BackupConfig struct {
	WorkDir         string
	LogFile         string
	Store           string // gcs or local
	LocalDir        string
	Bucket          string
	ProjectID       string
	CredentialsFile string
	KeyPrefix       string
	Recipients      []string // age public keys
	IdentityFile    string   // age private key used to decrypt fetched archives
	Compare         []string // fixture files compared to decide whether a new archive is needed
	Interval        time.Duration
	PastDays        int
	FutureDays      int
}

// Load loads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "cotracker.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.realm", "cotracker")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("backup.work_dir", ".")
	v.SetDefault("backup.log_file", "backup.log")
	v.SetDefault("backup.store", "local")
	v.SetDefault("backup.local_dir", "backups")
	v.SetDefault("backup.key_prefix", "db")
	v.SetDefault("backup.compare", []string{"pilots.json", "checkouts.json"})
	v.SetDefault("backup.interval", "0s")
	v.SetDefault("backup.past_days", 7)
	v.SetDefault("backup.future_days", 1)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/cotracker")
	v.AddConfigPath(".")

	if configPath := os.Getenv("COTRACKER_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply
	}

	v.SetEnvPrefix("COTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DBPath: v.GetString("db_path"),
		HTTP: HTTPConfig{
			Addr:  v.GetString("http.addr"),
			Realm: v.GetString("http.realm"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Backup: BackupConfig{
			WorkDir:         v.GetString("backup.work_dir"),
			LogFile:         v.GetString("backup.log_file"),
			Store:           v.GetString("backup.store"),
			LocalDir:        v.GetString("backup.local_dir"),
			Bucket:          v.GetString("backup.bucket"),
			ProjectID:       v.GetString("backup.project_id"),
			CredentialsFile: v.GetString("backup.credentials_file"),
			KeyPrefix:       v.GetString("backup.key_prefix"),
			Recipients:      v.GetStringSlice("backup.recipients"),
			IdentityFile:    v.GetString("backup.identity_file"),
			Compare:         v.GetStringSlice("backup.compare"),
			Interval:        v.GetDuration("backup.interval"),
			PastDays:        v.GetInt("backup.past_days"),
			FutureDays:      v.GetInt("backup.future_days"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	switch cfg.Backup.Store {
	case "local":
		if cfg.Backup.LocalDir == "" {
			return fmt.Errorf("backup.local_dir is required for the local store")
		}
	case "gcs":
		if cfg.Backup.Bucket == "" {
			return fmt.Errorf("backup.bucket is required for the gcs store")
		}
	default:
		return fmt.Errorf("invalid backup store: %s (must be local or gcs)", cfg.Backup.Store)
	}

	if cfg.Backup.Interval < 0 {
		return fmt.Errorf("backup.interval must not be negative")
	}

	if cfg.Backup.PastDays < 0 || cfg.Backup.FutureDays < 0 {
		return fmt.Errorf("backup.past_days and backup.future_days must not be negative")
	}

	return nil
}
