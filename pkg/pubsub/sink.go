package pubsub

import (
	"context"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// TopicSink publishes to topics by name, reusing one publisher per topic.
type TopicSink struct {
	client *Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

func NewTopicSink(client *Client) *TopicSink {
	return &TopicSink{client: client, publishers: make(map[string]*pubsub.Publisher)}
}

func (s *TopicSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Publish blocks until the server acknowledges the message.
func (s *TopicSink) Publish(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	pub, err := s.publisher(topic)
	if err != nil {
		return "", err
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func (s *TopicSink) publisher(topic string) (*pubsub.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub, nil
	}
	pub := s.client.Publisher(topic)
	if pub == nil {
		return nil, fmt.Errorf("publisher not configured for topic %q", topic)
	}
	s.publishers[topic] = pub
	return pub, nil
}

// Stop flushes every cached publisher.
func (s *TopicSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}
