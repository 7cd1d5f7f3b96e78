package handlers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/showforge/preprod-backend/internal/logger"
	"github.com/showforge/preprod-backend/internal/sse"
)

func newTestRealtimeHandler(t *testing.T) *RealtimeHandler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return NewRealtimeHandler(log, sse.NewSSEHub(log))
}

func TestReconnectReplacesClientAndSurvivesOldTeardown(t *testing.T) {
	h := newTestRealtimeHandler(t)
	actorID := uuid.New()
	sessionID := uuid.New()

	old := h.register(sessionID, actorID)
	// Reconnect on the same session: the old client is closed and replaced.
	replacement := h.register(sessionID, actorID)
	if old == replacement {
		t.Fatalf("reconnect should mint a new client")
	}
	if _, ok := <-old.Outbound; ok {
		t.Fatalf("old client should be closed after replacement")
	}

	// The old stream's handler still runs its teardown after ServeHTTP
	// returns. It must not panic and must not evict the replacement.
	h.unregister(sessionID, old)

	h.mu.RLock()
	current := h.clients[sessionID]
	h.mu.RUnlock()
	if current != replacement {
		t.Fatalf("replacement client lost its registration after old teardown")
	}

	h.unregister(sessionID, replacement)
	h.mu.RLock()
	_, exists := h.clients[sessionID]
	h.mu.RUnlock()
	if exists {
		t.Fatalf("session entry should be removed once its own client unregisters")
	}
}
