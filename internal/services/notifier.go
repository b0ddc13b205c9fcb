package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

// CanvasNotifier fans lifecycle events out on the canvas channel. A nil
// notifier or emitter drops everything.
type CanvasNotifier struct {
	emit SSEEmitter
}

func NewCanvasNotifier(emit SSEEmitter) *CanvasNotifier {
	return &CanvasNotifier{emit: emit}
}

func (n *CanvasNotifier) Notify(ctx context.Context, canvasID uuid.UUID, event realtime.SSEEvent, data any) {
	if n == nil || n.emit == nil || canvasID == uuid.Nil {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.CanvasChannel(canvasID),
		Event:   event,
		Data:    data,
	})
}
