package handlers

import (
	"fmt"
	"time"

	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
)

type ChainParams struct {
	Rules         *Rules
	Activities    ActivityStore
	Tasks         TaskStore
	Notifications NotificationStore
	Announcer     Announcer
	Marker        Marker
	Logger        *logger.Logger
	Metrics       *metrics.ProcessorMetrics
	Now           func() time.Time
}

// NewChain registers the built-in handlers in DefaultOrder.
func NewChain(params ChainParams) (*Executor, *Registry, error) {
	if params.Rules == nil {
		return nil, nil, fmt.Errorf("handler rules required")
	}
	activity, err := NewActivityHandler(params.Activities)
	if err != nil {
		return nil, nil, err
	}
	task, err := NewTaskHandler(TaskHandlerParams{
		Store: params.Tasks,
		Rules: params.Rules.Tasks,
		Now:   params.Now,
	})
	if err != nil {
		return nil, nil, err
	}
	notification, err := NewNotificationHandler(NotificationHandlerParams{
		Store:     params.Notifications,
		Tasks:     params.Tasks,
		Rules:     params.Rules.Notifications,
		Logger:    params.Logger,
		Announcer: params.Announcer,
		Marker:    params.Marker,
		Now:       params.Now,
	})
	if err != nil {
		return nil, nil, err
	}

	registry := NewRegistry()
	for _, h := range []Handler{activity, task, notification} {
		if err := registry.Register(h.Name(), h, params.Rules.Chain.Conditions[h.Name()]); err != nil {
			return nil, nil, err
		}
	}
	steps, err := registry.Resolve(DefaultOrder)
	if err != nil {
		return nil, nil, err
	}
	executor, err := NewExecutor(ExecutorParams{
		Steps:   steps,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, nil, err
	}
	return executor, registry, nil
}
