// Package main implements the vanadium binary: the voter-data query
// and registration service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/app"
	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		addr        string
		schemaPath  string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&addr, "addr", "", "HTTP listen address")
	flag.StringVar(&schemaPath, "schema", "", "Path to the entity schema file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Vanadium - Voter Data Query Service\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vanadium [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vanadium --data-dir /data/vanadium\n")
		fmt.Fprintf(os.Stderr, "  vanadium --config /etc/vanadium/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  VANADIUM_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  VANADIUM_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  VANADIUM_SCHEMA_PATH     Entity schema file\n")
		fmt.Fprintf(os.Stderr, "  VANADIUM_WAREHOUSE_TYPE  Warehouse source (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  VANADIUM_LOG_LEVEL       Log level (debug, info, warn, error)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("vanadium version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A local .env is convenience for development; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, addr, schemaPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)
	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.Wait(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command
// line flags, in increasing priority.
func loadConfig(configFile, dataDir, addr, schemaPath string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if schemaPath != "" {
		cfg.Schema.Path = schemaPath
	}

	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Infof("Vanadium %s (commit: %s)", version, commit)
	log.WithFields(log.Fields{
		"addr":      cfg.HTTP.Addr,
		"data_dir":  cfg.DataDir,
		"warehouse": cfg.Warehouse.Type,
		"schema":    cfg.Schema.Path,
	}).Info("configuration loaded")
}
