package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/showforge/preprod-backend/internal/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestHubDeliversArcEventsInOrder(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := ArcChannel(uuid.New())

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArcGenerationStarted, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArcGenerationProgress, Data: map[string]any{"seq": 2}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArcGenerationCompleted, Data: map[string]any{"seq": 3}})

	for _, want := range []SSEEvent{SSEEventArcGenerationStarted, SSEEventArcGenerationProgress, SSEEventArcGenerationCompleted} {
		got := recvMessage(t, client.Outbound, time.Second)
		if got.Event != want {
			t.Fatalf("event order: want=%s got=%s", want, got.Event)
		}
	}
}

func TestHubReconnectAfterClose(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := ArcChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)
	hub.CloseClient(clientA)

	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArcSectionUpdated})
	got := recvMessage(t, clientB.Outbound, time.Second)
	if got.Event != SSEEventArcSectionUpdated {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventArcSectionUpdated, got.Event)
	}
}

func TestHubCloseClientTwice(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := ArcChannel(uuid.New())

	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, channel)

	// A reconnect replacing the client and the old stream's own teardown
	// both close it; the second call must be a no-op.
	hub.CloseClient(client)
	hub.CloseClient(client)

	if _, ok := <-client.Outbound; ok {
		t.Fatalf("outbound should be closed")
	}
}

func TestHubScopesBroadcastToChannel(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	arcA := ArcChannel(uuid.New())
	arcB := ArcChannel(uuid.New())

	subscriber := hub.NewSSEClient(uuid.New())
	hub.AddChannel(subscriber, arcA)
	bystander := hub.NewSSEClient(uuid.New())
	hub.AddChannel(bystander, arcB)

	hub.Broadcast(SSEMessage{Channel: arcA, Event: SSEEventArcSectionUpdated})

	got := recvMessage(t, subscriber.Outbound, time.Second)
	if got.Event != SSEEventArcSectionUpdated {
		t.Fatalf("subscriber event: want=%s got=%s", SSEEventArcSectionUpdated, got.Event)
	}
	select {
	case msg := <-bystander.Outbound:
		t.Fatalf("bystander on another arc received %s", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}
