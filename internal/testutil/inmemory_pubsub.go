package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/resellerdesk/resellerdesk/internal/pubsub"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub records every published message per topic
type InMemoryPubSub struct {
	subscribers map[string][]chan *message.Message
	messages    map[string][]*message.Message
	mu          sync.RWMutex
}

// NewInMemoryPubSub creates a new instance of InMemoryPubSub
func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		subscribers: make(map[string][]chan *message.Message),
		messages:    make(map[string][]*message.Message),
	}
}

// Publish implements pubsub.Publisher interface
func (ps *InMemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	// Store the message
	ps.messages[topic] = append(ps.messages[topic], msg)

	// Notify all subscribers
	if subscribers, ok := ps.subscribers[topic]; ok {
		for _, ch := range subscribers {
			select {
			case ch <- msg:
			default:
			}
		}
	}

	return nil
}

// Subscribe implements pubsub.Subscriber interface
func (ps *InMemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan *message.Message, 100)
	ps.subscribers[topic] = append(ps.subscribers[topic], ch)

	// Send all existing messages for this topic
	if messages, ok := ps.messages[topic]; ok {
		go func() {
			for _, msg := range messages {
				select {
				case ch <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	return ch, nil
}

// Close implements pubsub.PubSub interface
func (ps *InMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, subscribers := range ps.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
	}

	ps.subscribers = make(map[string][]chan *message.Message)
	ps.messages = make(map[string][]*message.Message)

	return nil
}

// GetMessages returns all messages published to a topic
func (ps *InMemoryPubSub) GetMessages(topic string) []*message.Message {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	messages := make([]*message.Message, len(ps.messages[topic]))
	copy(messages, ps.messages[topic])
	return messages
}

// WaitForMessages polls until topic holds at least n messages or the timeout
// passes, side effects publish from detached goroutines
func (ps *InMemoryPubSub) WaitForMessages(topic string, n int, timeout time.Duration) []*message.Message {
	deadline := time.Now().Add(timeout)
	for {
		messages := ps.GetMessages(topic)
		if len(messages) >= n || time.Now().After(deadline) {
			return messages
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// DecodePayloads unmarshals every message on topic into maps
func (ps *InMemoryPubSub) DecodePayloads(topic string) []map[string]any {
	var payloads []map[string]any
	for _, msg := range ps.GetMessages(topic) {
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

// ClearMessages clears all stored messages
func (ps *InMemoryPubSub) ClearMessages() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.messages = make(map[string][]*message.Message)
}
