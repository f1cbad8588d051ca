package main

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

const defaultTickInterval = 15 * time.Second

type recoverer interface {
	Recover(ctx context.Context) (processor.RecoverySummary, error)
}

type ServiceParams struct {
	Logger    *logger.Logger
	Processor recoverer
	Interval  time.Duration
}

// Service drains pending events on startup and then on every tick.
type Service struct {
	logg      *logger.Logger
	processor recoverer
	interval  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Processor == nil {
		return nil, errors.New("processor is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Service{logg: params.Logger, processor: params.Processor, interval: interval}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(ctx, "startup recovery")
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	summary, err := s.processor.Recover(ctx)
	if err != nil {
		s.logg.Error(ctx, "event recovery failed", err)
	}
	if summary.ResetStale == 0 && summary.FailedStale == 0 && len(summary.Tenants) == 0 {
		return
	}
	processed := 0
	for _, tenant := range summary.Tenants {
		processed += tenant.Completed + tenant.Retried + tenant.Failed
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"reset_stale":  summary.ResetStale,
		"failed_stale": summary.FailedStale,
		"tenants":      len(summary.Tenants),
		"processed":    processed,
	}), "scheduler tick drained events")
}
