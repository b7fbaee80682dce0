package eventbus

import (
	"log"
	"sync"
	"sync/atomic"

	nc "github.com/nats-io/nats.go"
)

// SubscriberQueueSize bounds each subscriber's channel (spec §4.5:
// "per-subscriber bounded queues").
const SubscriberQueueSize = 256

// Event is one published line on a topic (output:{run_id},
// error:{run_id}, or complete:{run_id}).
type Event struct {
	Topic string
	Data  []byte
}

// Subscription is a bounded channel plus a lagged flag. Once Lagged is
// set the subscriber has missed at least one event and must refetch from
// the durable log rather than trust the channel's remaining contents.
type Subscription struct {
	Ch     chan Event
	Lagged *atomic.Bool

	sub *nc.Subscription
}

// Bus is a non-blocking pub/sub layer over the embedded NATS connection.
// Publish never blocks on a slow subscriber: on overflow the event is
// dropped for that subscriber and it is marked lagged, never retried
// (spec §4.5's "pumps themselves never block on subscribers" property).
type Bus struct {
	conn *nc.Conn
}

// Connect dials the embedded server's client URL.
func Connect(url string) (*Bus, error) {
	conn, err := nc.Connect(url, nc.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &Bus{conn: conn}, nil
}

// Close closes the underlying connection.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish sends data on topic. Publish is fire-and-forget; NATS itself
// fans out to every live subscription without the publisher blocking.
func (b *Bus) Publish(topic string, data []byte) error {
	return b.conn.Publish(topic, data)
}

// Subscribe returns a bounded-channel subscription to topic. The
// returned unsubscribe func must be called when the caller is done.
func (b *Bus) Subscribe(topic string) (*Subscription, func(), error) {
	s := &Subscription{
		Ch:     make(chan Event, SubscriberQueueSize),
		Lagged: &atomic.Bool{},
	}

	var mu sync.Mutex
	sub, err := b.conn.Subscribe(topic, func(msg *nc.Msg) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case s.Ch <- Event{Topic: msg.Subject, Data: msg.Data}:
		default:
			if !s.Lagged.Swap(true) {
				log.Printf("[EVENTBUS] subscriber to %s lagged, marking for durable-log refetch", topic)
			}
		}
	})
	if err != nil {
		return nil, nil, err
	}
	s.sub = sub

	unsubscribe := func() {
		_ = sub.Unsubscribe()
		close(s.Ch)
	}
	return s, unsubscribe, nil
}

// Topics used across the Output Router and Command Surface (spec §4.5).
func OutputTopic(runID string) string   { return "output:" + runID }
func ErrorTopic(runID string) string    { return "error:" + runID }
func CompleteTopic(runID string) string { return "complete:" + runID }
