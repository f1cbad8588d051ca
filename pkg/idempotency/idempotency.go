package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/eventcore/pkg/redis"
)

// Manager tracks which handlers already produced side effects for an event
// using Redis SETNX with a TTL.
// Keys follow the `evq:idempotency:evt:handled:<consumer>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks events as handled for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMark returns true if the consumer already handled the event and
// otherwise marks it as handled with the configured TTL.
func (m *Manager) CheckAndMark(ctx context.Context, consumer string, eventID int64) (bool, error) {
	key, err := m.handledKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release drops the marker so a later retry can run the side effect again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID int64) error {
	key, err := m.handledKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) handledKey(consumer string, eventID int64) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID <= 0 {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:handled:%s", consumer)
	return m.store.IdempotencyKey(scope, strconv.FormatInt(eventID, 10)), nil
}
