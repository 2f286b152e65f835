package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"cotracker/internal/backup"
	"cotracker/internal/checkouts"
	"cotracker/internal/config"
	"cotracker/internal/daemon"
	"cotracker/internal/database"
	"cotracker/internal/models"
	"cotracker/internal/server"
)

var (
	configPath string

	seedAirstrips     string
	seedAircraftTypes string
	seedBatchSize     int

	userPassword  string
	userFirstName string
	userLastName  string
	userIsPilot   bool
	userIsAdmin   bool

	fetchLogFile string
	fetchDecrypt bool
)

var (
	rootCmd = &cobra.Command{
		Use:          "cotracker",
		Short:        "Track which pilots are checked out at which airstrips",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and scheduled backups",
		RunE:  runServe,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load airstrips and aircraft types from CSV when their tables are empty",
		RunE:  runSeed,
	}

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userAddCmd = &cobra.Command{
		Use:   "add [username]",
		Short: "Create a user who can sign in",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserAdd,
	}

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Back up and retrieve the database",
	}
	backupCollectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Dump the database and upload an encrypted archive when it changed",
		RunE:  runBackupCollect,
	}
	backupFetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Download the most recent archive",
		RunE:  runBackupFetch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedAirstrips, "airstrips", "", "CSV with ident,name,is_base,bases columns")
	seedCmd.Flags().StringVar(&seedAircraftTypes, "aircraft-types", "", "CSV with a name column")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", 500, "Rows inserted per transaction")

	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Password for basic auth")
	userAddCmd.Flags().StringVar(&userFirstName, "first", "", "First name")
	userAddCmd.Flags().StringVar(&userLastName, "last", "", "Last name")
	userAddCmd.Flags().BoolVar(&userIsPilot, "pilot", false, "The user is a pilot and can hold checkouts")
	userAddCmd.Flags().BoolVar(&userIsAdmin, "superuser", false, "The user can edit base attachments and anyone's checkouts")
	_ = userAddCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCollectCmd)
	backupCmd.AddCommand(backupFetchCmd)
	backupFetchCmd.Flags().StringVar(&fetchLogFile, "log-file", "retrieve.log", "File the fetch steps are logged to")
	backupFetchCmd.Flags().BoolVar(&fetchDecrypt, "decrypt", false, "Decrypt the archive with backup.identity_file")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		os.Setenv("COTRACKER_CONFIG_PATH", configPath)
	}
	return config.Load()
}

func openDatabase(cfg *config.Config, logger *slog.Logger) (*database.DB, error) {
	db, err := database.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Debug("Opened database", "path", cfg.DBPath)
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := server.NewMetrics()
	service := checkouts.NewService(db.Pilots(), db.Airstrips(), db.AircraftTypes(), db.Checkouts(), metrics)
	router := server.NewRouter(server.NewHandler(service), db.Pilots(), metrics, logger, cfg.HTTP.Realm)

	daemonCfg := daemon.Config{
		Server: server.New(cfg.HTTP.Addr, router, logger),
		Logger: logger,
	}

	if cfg.Backup.Interval > 0 {
		store, closeStore, err := newStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		daemonCfg.Backup = newPipeline(cfg, db, store, logger)
		daemonCfg.BackupInterval = cfg.Backup.Interval
	}

	d, err := daemon.New(daemonCfg)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg, os.Stdout)

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if seedAirstrips != "" {
		populated, err := db.Airstrips().IsTablePopulated()
		if err != nil {
			return err
		}
		if populated {
			logger.Info("Airstrips table is already populated")
		} else {
			logger.Info("Airstrips table is empty, loading from CSV", "csv_path", seedAirstrips)
			if err := db.Airstrips().LoadFromCSV(seedAirstrips, seedBatchSize); err != nil {
				return fmt.Errorf("failed to load airstrips: %w", err)
			}
		}
	}

	if seedAircraftTypes != "" {
		populated, err := db.AircraftTypes().IsTablePopulated()
		if err != nil {
			return err
		}
		if populated {
			logger.Info("Aircraft types table is already populated")
		} else {
			logger.Info("Aircraft types table is empty, loading from CSV", "csv_path", seedAircraftTypes)
			if err := db.AircraftTypes().LoadFromCSV(seedAircraftTypes, seedBatchSize); err != nil {
				return fmt.Errorf("failed to load aircraft types: %w", err)
			}
		}
	}
	return nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg, os.Stdout)

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(userPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	pilot := &models.Pilot{
		Username:     args[0],
		FirstName:    userFirstName,
		LastName:     userLastName,
		IsPilot:      userIsPilot,
		IsSuperuser:  userIsAdmin,
		PasswordHash: string(hash),
	}
	if err := db.Pilots().Create(pilot); err != nil {
		return err
	}
	logger.Info("Created user", "username", pilot.Username, "is_pilot", pilot.IsPilot, "is_superuser", pilot.IsSuperuser)
	return nil
}

func runBackupCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := fileLogger(cfg, cfg.Backup.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	start := time.Now()
	result, err := newPipeline(cfg, db, store, logger).Collect(ctx)
	if err != nil {
		logger.Error("Backup failed", "error", err)
		return err
	}
	logger.Info("Backup finished", "necessary", result.Necessary, "key", result.Key, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func runBackupFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := fileLogger(cfg, fetchLogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	path, err := backup.Fetch(ctx, logger, store, backup.FetchOptions{
		WorkDir:      cfg.Backup.WorkDir,
		KeyPrefix:    cfg.Backup.KeyPrefix,
		PastDays:     cfg.Backup.PastDays,
		FutureDays:   cfg.Backup.FutureDays,
		Decrypt:      fetchDecrypt,
		IdentityFile: cfg.Backup.IdentityFile,
	}, time.Now())
	if err != nil {
		logger.Error("Fetch failed", "error", err)
		return err
	}
	if path != "" {
		logger.Info("Latest archive ready", "path", path)
	}
	return nil
}

// fileLogger logs to stdout and appends to the named file
func fileLogger(cfg *config.Config, path string) (*slog.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := initLogger(cfg, io.MultiWriter(os.Stdout, f))
	return logger, func() { f.Close() }, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backup.ObjectStore, func(), error) {
	if cfg.Backup.Store == "gcs" {
		store, err := backup.NewGCSStore(ctx, cfg.Backup.Bucket, cfg.Backup.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using GCS backup store", "bucket", cfg.Backup.Bucket, "project_id", cfg.Backup.ProjectID)
		return store, func() { store.Close() }, nil
	}

	logger.Info("Using local backup store", "dir", cfg.Backup.LocalDir)
	return backup.NewLocalStore(cfg.Backup.LocalDir), func() {}, nil
}

func newPipeline(cfg *config.Config, db *database.DB, store backup.ObjectStore, logger *slog.Logger) *backup.Pipeline {
	dbName := strings.TrimSuffix(filepath.Base(cfg.DBPath), filepath.Ext(cfg.DBPath))
	return backup.NewPipeline(db, store, logger, backup.Options{
		WorkDir:    cfg.Backup.WorkDir,
		DBName:     dbName,
		KeyPrefix:  cfg.Backup.KeyPrefix,
		Compare:    cfg.Backup.Compare,
		Recipients: cfg.Backup.Recipients,
	})
}
