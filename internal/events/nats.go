package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// subscriptionBuffer bounds how many payloads wait for a slow reader.
	// Payloads arriving while it is full are dropped.
	subscriptionBuffer = 64

	closeFlushTimeout = 2 * time.Second

	contentTypeHeader = "Content-Type"
)

// connect dials url with a client name and unlimited reconnects. Options in
// opts are applied after those defaults and may override them.
func connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	all := append([]nats.Option{
		nats.Name("eligibility"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher sends events as JSON, using the topic as the NATS subject.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish does nothing and returns ctx's error once ctx is done.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Header.Set(contentTypeHeader, "application/json")
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered events before closing the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(closeFlushTimeout)
	p.conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flushing events: %w", err)
	}
	return nil
}

// NATSSubscriber delivers raw event payloads from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url. Pass nats.DisconnectErrHandler or
// nats.ReconnectHandler in opts to observe connection state.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription forwards payloads into ch until cancelled.
type subscription struct {
	mu     sync.Mutex
	ch     chan []byte
	sub    *nats.Subscription
	closed bool
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg.Data:
	default:
	}
}

// cancel unsubscribes, discards anything still buffered and closes ch.
// Calling it again is a no-op.
func (s *subscription) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
drain:
	for {
		select {
		case <-s.ch:
		default:
			break drain
		}
	}
	close(s.ch)
}

// Subscribe accepts NATS wildcards, so All receives every event. The
// subscription is registered with the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan []byte, func(), error) {
	sub := &subscription{ch: make(chan []byte, subscriptionBuffer)}
	ns, err := s.conn.Subscribe(subject, sub.deliver)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	sub.sub = ns
	if err := s.conn.Flush(); err != nil {
		sub.cancel()
		return nil, nil, fmt.Errorf("registering subscription to %s: %w", subject, err)
	}
	return sub.ch, sub.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
