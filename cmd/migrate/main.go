package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|auto|create|validate")
	dir := flag.String("dir", "", "migrations directory (default: embedded migrations; create and validate use "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	if err := run(ctx, cfg, logg, *cmd, *dir, *name, *version); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd, dir, name, version string) error {
	// create and validate only touch the filesystem.
	fsDir := dir
	if fsDir == "" {
		fsDir = migrate.DefaultDir
	}
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(fsDir, name)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "created migration")
		return nil
	case "validate":
		return migrate.ValidateDir(fsDir)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	if cmd == "auto" || cfg.FeatureFlags.UseSQLite {
		if cmd != "auto" && cmd != "up" {
			return fmt.Errorf("command %q is not supported for sqlite; use auto", cmd)
		}
		return migrate.AutoMigrate(dbClient.DB())
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql database: %w", err)
	}

	runner, err := migrate.NewRunner(sqlDB, migrate.Options{Dir: dir}, logg)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		pending, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		current, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithFields(ctx, map[string]any{"version": current, "pending": pending}), "schema status")
		return nil
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return runner.ToVersion(ctx, version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
}
