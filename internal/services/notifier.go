package services

import (
  "context"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/sse"
)

// SSEEmitter abstracts "send this live update somewhere": directly into the
// local hub, or through the redis bus so every instance's hub sees it.
type SSEEmitter interface {
  Emit(ctx context.Context, msg sse.SSEMessage)
}

type SSEBusPublisher interface {
  Publish(ctx context.Context, msg sse.SSEMessage) error
}

type hubEmitter struct {
  log *logger.Logger
  hub *sse.SSEHub
  bus SSEBusPublisher
}

// NewSSEEmitter prefers the bus when one is configured; the local hub is the
// single-instance fallback.
func NewSSEEmitter(log *logger.Logger, hub *sse.SSEHub, bus SSEBusPublisher) SSEEmitter {
  return &hubEmitter{log: log.With("service", "SSEEmitter"), hub: hub, bus: bus}
}

func (e *hubEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
  if e == nil || msg.Channel == "" {
    return
  }
  if e.bus != nil {
    if err := e.bus.Publish(ctx, msg); err == nil {
      return
    } else {
      e.log.Warn("SSE bus publish failed, falling back to local hub", "error", err)
    }
  }
  if e.hub != nil {
    e.hub.Broadcast(msg)
  }
}
