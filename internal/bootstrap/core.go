// Package bootstrap assembles the event processing core shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/eventcore/internal/activities"
	"github.com/angelmondragon/eventcore/internal/control"
	"github.com/angelmondragon/eventcore/internal/cron"
	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/internal/handlers"
	"github.com/angelmondragon/eventcore/internal/notifications"
	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/internal/tasks"
	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/idempotency"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
	"github.com/angelmondragon/eventcore/pkg/pubsub"
	"github.com/angelmondragon/eventcore/pkg/redis"
)

type Params struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	// Redis and PubSub are optional.
	Redis      *redis.Client
	PubSub     *pubsub.Client
	Registerer prometheus.Registerer
}

// Core holds the wired services. Processor and Control reference each other:
// the processor asks Control whether a tenant is paused and Control drains
// through the processor on resume.
type Core struct {
	Rules         *handlers.Rules
	Events        events.Service
	EventRepo     events.Repository
	Tracker       *events.Tracker
	Processor     *processor.Service
	Control       *control.Service
	Notifications notifications.Service
	NotifyRepo    notifications.Repository
	Activities    activities.Service
	EventCleanup  *cron.EventCleanupJob
	Metrics       *metrics.ProcessorMetrics
	CronMetrics   *metrics.CronJobMetrics
}

func New(ctx context.Context, params Params) (*Core, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := params.Config
	logg := params.Logger
	conn := params.DB.DB()

	rules, err := handlers.LoadRules(cfg.Events.HandlerRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load handler rules: %w", err)
	}
	for _, warning := range rules.Warnings {
		logg.Warn(logg.WithField(ctx, "rules_file", cfg.Events.HandlerRulesPath), warning)
	}

	reg := params.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	processorMetrics := metrics.NewProcessorMetrics(reg)
	cronMetrics := metrics.NewCronJobMetrics(reg)

	eventRepo := events.NewRepository(conn)
	eventService, err := events.NewService(events.ServiceParams{
		Repository:        eventRepo,
		Logger:            logg,
		DefaultMaxRetries: cfg.Events.DefaultMaxRetries,
	})
	if err != nil {
		return nil, err
	}

	notifyRepo := notifications.NewRepository(conn)
	notificationService, err := notifications.NewService(notifyRepo)
	if err != nil {
		return nil, err
	}
	activityRepo := activities.NewRepository(conn)
	activityService, err := activities.NewService(activityRepo)
	if err != nil {
		return nil, err
	}

	chainParams := handlers.ChainParams{
		Rules:         rules,
		Activities:    activityRepo,
		Tasks:         tasks.NewRepository(conn),
		Notifications: notifyRepo,
		Logger:        logg,
		Metrics:       processorMetrics,
	}
	// Optional collaborators are only assigned when present so the interfaces stay nil.
	if params.PubSub != nil {
		announcer, err := pubsub.NewNotificationAnnouncer(params.PubSub)
		if err != nil {
			return nil, fmt.Errorf("notification announcer: %w", err)
		}
		chainParams.Announcer = announcer
		if params.Redis != nil {
			marker, err := idempotency.NewManager(params.Redis, cfg.Events.IdempotencyTTL)
			if err != nil {
				return nil, fmt.Errorf("idempotency manager: %w", err)
			}
			chainParams.Marker = marker
		}
	}
	chain, registry, err := handlers.NewChain(chainParams)
	if err != nil {
		return nil, fmt.Errorf("handler chain: %w", err)
	}
	logg.Info(logg.WithField(ctx, "handlers", chain.Order()), fmt.Sprintf("handler chain ready (%d registered)", len(registry.Names())))

	controlService, err := control.NewService(control.ServiceParams{
		Repository: control.NewRepository(conn),
		Events:     eventRepo,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	proc, err := processor.NewService(processor.ServiceParams{
		Events:    eventRepo,
		Control:   controlService,
		Chain:     chain,
		Logger:    logg,
		Metrics:   processorMetrics,
		BatchSize: cfg.Events.BatchSize,
		Backoff: processor.Backoff{
			Base: cfg.Events.RetryBackoffBase,
			Max:  cfg.Events.RetryBackoffMax,
		},
		StaleAfter: cfg.Events.StaleProcessingTTL,
	})
	if err != nil {
		return nil, err
	}
	controlService.SetDrainer(proc)

	trackerParams := events.TrackerParams{
		Events:        eventService,
		Logger:        logg,
		TrackedFields: rules.TrackedFields,
	}
	if cfg.Events.ImmediateDispatch {
		trackerParams.Dispatcher = proc
	}
	tracker, err := events.NewTracker(trackerParams)
	if err != nil {
		return nil, err
	}

	cleanup, err := cron.NewEventCleanupJob(cron.EventCleanupJobParams{
		Logger:        logg,
		DB:            params.DB,
		Repository:    eventRepo,
		Metrics:       cronMetrics,
		Enabled:       cfg.Cleanup.Enabled,
		RetentionDays: cfg.Cleanup.RetentionDays,
		BatchSize:     cfg.Cleanup.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	return &Core{
		Rules:         rules,
		Events:        eventService,
		EventRepo:     eventRepo,
		Tracker:       tracker,
		Processor:     proc,
		Control:       controlService,
		Notifications: notificationService,
		NotifyRepo:    notifyRepo,
		Activities:    activityService,
		EventCleanup:  cleanup,
		Metrics:       processorMetrics,
		CronMetrics:   cronMetrics,
	}, nil
}

// CronJobs returns the maintenance jobs run by the cron worker, in order.
func (c *Core) CronJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	recovery, err := cron.NewEventRecoveryJob(cron.EventRecoveryJobParams{
		Logger:    logg,
		Processor: c.Processor,
	})
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: c.NotifyRepo,
		Metrics:    c.CronMetrics,
		Enabled:    cfg.Cleanup.Enabled,
		Retention:  cfg.Cleanup.NotificationRetentionDays,
		BatchSize:  cfg.Cleanup.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{recovery, c.EventCleanup, notificationCleanup}, nil
}
