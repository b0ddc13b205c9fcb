package bus

import (
	"context"

	"github.com/yungbote/neurocanvas-backend/internal/realtime"
)

// Bus fans SSE messages out to every API process. Each process forwards
// received messages into its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

type localBus struct {
	hub *realtime.SSEHub
}

// NewLocalBus delivers straight into hub. Used when Redis is not configured.
func NewLocalBus(hub *realtime.SSEHub) Bus {
	return &localBus{hub: hub}
}

func (b *localBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.hub.Broadcast(msg)
	return nil
}

func (b *localBus) StartForwarder(context.Context, func(m realtime.SSEMessage)) error { return nil }

func (b *localBus) Close() error { return nil }
