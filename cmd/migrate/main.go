package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/pkg/config"
	"github.com/yatube/yatube/pkg/logging"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with the down command")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-steps N] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()

	switch command {
	case "up":
		logger.Info("Applying migrations")
		err = db.Migrate(cfg.Database.URL)
	case "down":
		logger.Info("Rolling back migrations", zap.Int("steps", *steps))
		err = db.Rollback(cfg.Database.URL, *steps)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = db.SchemaVersion(cfg.Database.URL)
		if err == nil {
			logger.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}
