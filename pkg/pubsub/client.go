// Package pubsub hands newly created notifications to delivery transports
// over a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

const topicCheckTimeout = 5 * time.Second

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notification topic is required")
)

type Client struct {
	client *pubsub.Client
	cfg    config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and checks the notification topic. With
// CreateTopic set a missing topic is created instead of failing.
func NewClient(ctx context.Context, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.NotificationTopic) == "" {
		return nil, errNoTopic
	}
	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{client: raw, cfg: cfg, publishers: map[string]*pubsub.Publisher{}}

	created, err := c.ensureTopic(ctx, cfg.NotificationTopic, cfg.CreateTopic)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":   c.topicName(cfg.NotificationTopic),
			"created": created,
		}), "pubsub ready")
	}
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context, topic string, create bool) (bool, error) {
	name := c.topicName(topic)
	if name == "" {
		return false, errNoTopic
	}
	checkCtx, cancel := context.WithTimeout(ctx, topicCheckTimeout)
	defer cancel()

	_, err := c.client.TopicAdminClient.GetTopic(checkCtx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return false, nil
	case status.Code(err) != codes.NotFound:
		return false, fmt.Errorf("get topic %s: %w", name, err)
	case !create:
		return false, fmt.Errorf("topic %s does not exist", name)
	}
	_, err = c.client.TopicAdminClient.CreateTopic(checkCtx, &pubsubpb.Topic{Name: name})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("create topic %s: %w", name, err)
	}
	return true, nil
}

// Publisher returns a cached publisher for topic, a short id or a full
// projects/<p>/topics/<t> name. Close flushes every publisher handed out.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.topicName(topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	p := c.client.Publisher(name)
	c.publishers[name] = p
	return p
}

func (c *Client) NotificationPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.NotificationTopic)
}

// PublishTimeout bounds how long an announcement waits for the server ack.
func (c *Client) PublishTimeout() time.Duration {
	if c == nil || c.cfg.PublishTimeout <= 0 {
		return defaultPublishTimeout
	}
	return c.cfg.PublishTimeout
}

// Ping checks the notification topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.ensureTopic(ctx, c.cfg.NotificationTopic, false)
	return err
}

// Close stops the publishers, sending anything still buffered, then closes
// the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) topicName(topic string) string {
	return topicResourceName(c.cfg.ProjectID, topic)
}

func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
