package handlers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/showforge/preprod-backend/internal/logger"
	"github.com/showforge/preprod-backend/internal/requestdata"
	"github.com/showforge/preprod-backend/internal/sse"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *sse.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.SSEClient // key: SessionID
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log:     log,
		Hub:     hub,
		clients: make(map[uuid.UUID]*sse.SSEClient),
	}
}

func (h *RealtimeHandler) sessionFrom(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, uuid.Nil, false
	}
	sessionID := rd.SessionID
	if sessionID == uuid.Nil {
		// Tokens without a session claim still get a stable stream keyed by
		// actor, one connection at a time.
		sessionID = rd.ActorID
	}
	return rd.ActorID, sessionID, true
}

// GET /sse/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	actorID, sessionID, ok := h.sessionFrom(c)
	if !ok {
		return
	}
	h.Log.Info("SSEStream open", "actor_id", actorID.String(), "session_id", sessionID.String())

	client := h.register(sessionID, actorID)

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.unregister(sessionID, client)
}

// register installs a fresh client for the session, closing any stream the
// session already had open.
func (h *RealtimeHandler) register(sessionID, actorID uuid.UUID) *sse.SSEClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, exists := h.clients[sessionID]; exists {
		h.Hub.CloseClient(existing)
	}
	client := h.Hub.NewSSEClient(actorID)
	h.clients[sessionID] = client
	return client
}

// unregister tears down a finished stream. The session map entry is removed
// only when it still points at this client, so a reconnect that already
// replaced it keeps its registration.
func (h *RealtimeHandler) unregister(sessionID uuid.UUID, client *sse.SSEClient) {
	h.mu.Lock()
	if h.clients[sessionID] == client {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()
	h.Hub.CloseClient(client)
}

// POST /sse/subscribe  body: {"channel": "arc:<uuid>"}
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	_, sessionID, ok := h.sessionFrom(c)
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_channel", errors.New("channel required"))
		return
	}

	h.mu.RLock()
	client, exists := h.clients[sessionID]
	h.mu.RUnlock()
	if !exists {
		RespondError(c, http.StatusConflict, "no_active_stream", errors.New("no active SSE connection for this session"))
		return
	}

	h.Hub.AddChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "subscribed", "channel": req.Channel})
}

// POST /sse/unsubscribe  body: {"channel": "arc:<uuid>"}
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	_, sessionID, ok := h.sessionFrom(c)
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_channel", errors.New("channel required"))
		return
	}

	h.mu.RLock()
	client, exists := h.clients[sessionID]
	h.mu.RUnlock()
	if !exists {
		RespondError(c, http.StatusConflict, "no_active_stream", errors.New("no active SSE connection for this session"))
		return
	}

	h.Hub.RemoveChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "unsubscribed", "channel": req.Channel})
}
