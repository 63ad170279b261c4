// Package pubsub wraps the Pub/Sub v2 client used by the outbox publisher and
// the analytics worker.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

var (
	ErrNotProvisioned = errors.New("pubsub resource not provisioned")

	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
	// subscribers must find their subscriptions; publishers only need topics
	consumer bool
}

// NewClient connects to Pub/Sub. consumer selects whether Ping probes the
// configured subscriptions or the configured topics. Resources are probed
// once here so a misconfigured worker fails at startup.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, consumer bool, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg, consumer: consumer}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "consumer", consumer), "pubsub ready")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that every configured subscription (consumer mode) or topic
// (publisher mode) exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	if c.consumer {
		subs := nonBlank(c.cfg.SalesSubscription)
		if len(subs) == 0 {
			return errNoSubscriptions
		}
		for _, sub := range subs {
			_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
				Subscription: subscriptionResourceName(c.project, sub),
			})
			if err != nil {
				return probeError("subscription "+sub, err)
			}
		}
		return nil
	}
	for _, topic := range nonBlank(c.cfg.SalesTopic, c.cfg.InventoryTopic) {
		_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: topicResourceName(c.project, topic),
		})
		if err != nil {
			return probeError("topic "+topic, err)
		}
	}
	return nil
}

func probeError(what string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", what, ErrNotProvisioned)
	}
	return fmt.Errorf("probe %s: %w", what, err)
}

// Subscription accepts a subscription id or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	full := subscriptionResourceName(c.project, name)
	if full == "" {
		return nil
	}
	return c.ps.Subscriber(full)
}

// SalesSubscription feeds the analytics worker.
func (c *Client) SalesSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.SalesSubscription)
}

// Publisher accepts a topic id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	full := topicResourceName(c.project, name)
	if full == "" {
		return nil
	}
	return c.ps.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func nonBlank(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func subscriptionResourceName(project, name string) string {
	return resourceName(project, "subscriptions", name)
}

func topicResourceName(project, name string) string {
	return resourceName(project, "topics", name)
}

func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
