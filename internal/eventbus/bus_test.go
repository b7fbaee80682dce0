package eventbus

import (
	"testing"
	"time"
)

func startTestBus(t *testing.T) (*EmbeddedServer, *Bus) {
	t.Helper()
	srv, err := NewEmbeddedServer(EmbeddedServerConfig{Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(srv.Shutdown)

	bus, err := Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(bus.Close)

	return srv, bus
}

func TestPublishSubscribeDeliversOnTopic(t *testing.T) {
	_, bus := startTestBus(t)

	sub, unsubscribe, err := bus.Subscribe(OutputTopic("run-1"))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	if err := bus.Publish(OutputTopic("run-1"), []byte("hello")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case ev := <-sub.Ch:
		if string(ev.Data) != "hello" {
			t.Fatalf("event data = %q, want %q", ev.Data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive published event within timeout")
	}
}

func TestSubscribeOnlyReceivesItsOwnTopic(t *testing.T) {
	_, bus := startTestBus(t)

	sub, unsubscribe, err := bus.Subscribe(OutputTopic("run-1"))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	if err := bus.Publish(ErrorTopic("run-1"), []byte("stderr line")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := bus.Publish(OutputTopic("run-1"), []byte("stdout line")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case ev := <-sub.Ch:
		if string(ev.Data) != "stdout line" {
			t.Fatalf("event data = %q, want only the output-topic event", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive the output-topic event")
	}

	select {
	case ev := <-sub.Ch:
		t.Fatalf("received unexpected second event %q on an output-only subscription", ev.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlowSubscriberIsMarkedLaggedNotBlocked(t *testing.T) {
	_, bus := startTestBus(t)

	sub, unsubscribe, err := bus.Subscribe(OutputTopic("run-1"))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	for i := 0; i < SubscriberQueueSize+10; i++ {
		if err := bus.Publish(OutputTopic("run-1"), []byte("line")); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for !sub.Lagged.Load() {
		select {
		case <-deadline:
			t.Fatal("subscriber was never marked lagged after overflowing its queue")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
