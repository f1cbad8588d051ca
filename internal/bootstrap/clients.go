package bootstrap

import (
	"context"

	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/pubsub"
	"github.com/angelmondragon/eventcore/pkg/redis"
)

// OpenRedis connects when redis is configured and returns nil otherwise.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*redis.Client, error) {
	if !cfg.Enabled() {
		logg.Info(ctx, "redis not configured; using in-process locks and no announce markers")
		return nil, nil
	}
	return redis.New(ctx, cfg, logg)
}

// OpenPubSub connects when the notification topic is configured and returns nil otherwise.
func OpenPubSub(ctx context.Context, cfg config.PubSubConfig, logg *logger.Logger) (*pubsub.Client, error) {
	if !cfg.Enabled() {
		logg.Info(ctx, "pubsub not configured; notification hand-off disabled")
		return nil, nil
	}
	return pubsub.NewClient(ctx, cfg, logg)
}
