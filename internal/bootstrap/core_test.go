package bootstrap

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/migrate"
)

func newCore(t *testing.T) (*Core, *db.Client, *config.Config) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{
		App:          config.AppConfig{Env: "test"},
		DB:           config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "core.db")},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true},
		Events: config.EventsConfig{
			BatchSize:          50,
			DefaultMaxRetries:  2,
			StaleProcessingTTL: 15 * time.Minute,
			ImmediateDispatch:  true,
			HandlerRulesPath:   filepath.Join("..", "..", "config", "handlers.yaml"),
		},
		Cleanup: config.CleanupConfig{Enabled: true, RetentionDays: 30, BatchSize: 100, NotificationRetentionDays: 90},
	}
	ctx := context.Background()
	client, err := db.New(ctx, cfg.DB, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, migrate.AutoMigrate(client.DB()))

	core, err := New(ctx, Params{
		Config:     cfg,
		Logger:     logg,
		DB:         client,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return core, client, cfg
}

func TestCoreProcessesTrackedChangeEndToEnd(t *testing.T) {
	core, client, _ := newCore(t)
	ctx := context.Background()

	created, err := core.Tracker.Track(ctx, events.Change{
		Tenant:     "tenant_a",
		EntityType: "Client",
		EntityID:   "5",
		Action:     enums.EventActionCreate,
		Current:    map[string]any{"name": "Acme", "assigned_to": "u1"},
		Actor:      "u9",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	evt, err := core.Events.Get(ctx, "tenant_a", created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusCompleted, evt.Status)
	assert.NotNil(t, evt.ProcessedAt)

	var activities int64
	require.NoError(t, client.DB().Model(&models.Activity{}).Where("event_id = ?", evt.ID).Count(&activities).Error)
	assert.Equal(t, int64(1), activities)
}

func TestCorePauseHoldsEventsUntilResume(t *testing.T) {
	core, _, _ := newCore(t)
	ctx := context.Background()

	_, err := core.Control.Pause(ctx, "tenant_b", "ops", "maintenance")
	require.NoError(t, err)

	created, err := core.Tracker.Track(ctx, events.Change{
		Tenant:     "tenant_b",
		EntityType: "Client",
		EntityID:   "7",
		Action:     enums.EventActionCreate,
		Current:    map[string]any{"name": "Beta"},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	evt, err := core.Events.Get(ctx, "tenant_b", created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusPending, evt.Status)

	snapshot, err := core.Control.Resume(ctx, "tenant_b", "ops")
	require.NoError(t, err)
	assert.False(t, snapshot.IsPaused)

	evt, err = core.Events.Get(ctx, "tenant_b", created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusCompleted, evt.Status)
}

func TestCronJobsOrder(t *testing.T) {
	core, client, cfg := newCore(t)
	jobs, err := core.CronJobs(cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), client)
	require.NoError(t, err)
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	assert.Equal(t, []string{"event-recovery", "event-cleanup", "notification-cleanup"}, names)
}
