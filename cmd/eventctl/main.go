package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/eventcore/internal/bootstrap"
	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "eventctl"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "status", "command: pause|resume|status|process|retry|recover|cleanup")
	tenant := flag.String("tenant", "", "tenant schema")
	actor := flag.String("actor", "", "operator recorded on pause/resume")
	reason := flag.String("reason", "", "pause reason")
	eventID := flag.Int64("event-id", 0, "event id (for retry)")
	retention := flag.Int("retention-days", 0, "retention in days (for cleanup; 0 uses config)")
	batch := flag.Int("batch-size", 0, "rows per delete batch (for cleanup; 0 uses config)")
	flag.Parse()

	opts := options{
		cmd:           *cmd,
		tenant:        *tenant,
		actor:         *actor,
		reason:        *reason,
		eventID:       *eventID,
		retentionDays: *retention,
		batchSize:     *batch,
	}
	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "eventctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "migrations", err)

	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	if redisClient != nil {
		defer redisClient.Close()
	}

	core, err := bootstrap.New(ctx, bootstrap.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.NewRegistry(),
	})
	requireResource(ctx, logg, "event core", err)

	result, err := run(ctx, opts, deps{
		control:   core.Control,
		processor: core.Processor,
		cleanup:   core.EventCleanup,
	})
	if err != nil {
		logg.Error(ctx, "command failed", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
