package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/domain/event"
)

// publisher dispatches change notifications after a successful write. Handler failures
// are logged and never undo the write.
type publisher struct {
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, eventType event.Type, aggregateID string, payload map[string]any) {
	if p.dispatcher == nil {
		return
	}
	evt := event.NewEvent(eventType, aggregateID, payload)
	if err := p.dispatcher.Dispatch(ctx, evt); err != nil {
		p.logger.Warn("Event handler failed",
			zap.String("event_type", eventType.String()),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}
}
