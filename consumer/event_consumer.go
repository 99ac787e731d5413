package consumer

import (
	"context"

	"github.com/dnt-protocol/dnt-staking-engine/internal/queue"
)

// EventConsumer receives the audit events emitted by the engine. It is
// implemented by the queue manager.
//
//go:generate mockery --name=EventConsumer --output=../tests/mocks --outpkg=mocks --filename=mock_event_consumer.go
type EventConsumer interface {
	PublishLiquidation(ctx context.Context, msg *queue.LiquidationMessage) error
}
