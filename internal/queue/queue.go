package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
)

// QueueManager owns the rabbitmq connection. It publishes liquidation
// records and consumes governance updates.
type QueueManager struct {
	cfg    *config.QueueConfig
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueueManager(cfg *config.QueueConfig, logger *zap.Logger) (*QueueManager, error) {
	if cfg == nil {
		return nil, errors.New("nil queue config")
	}
	qm := &QueueManager{
		cfg:    cfg,
		logger: logger.Named("queue"),
	}
	if _, err := qm.channel(); err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}
	return qm, nil
}

func (qm *QueueManager) dialURL() (string, error) {
	uri, err := amqp.ParseURI(qm.cfg.URL)
	if err != nil {
		return "", err
	}
	if qm.cfg.User != "" {
		uri.Username = qm.cfg.User
		uri.Password = qm.cfg.Password
	}
	return uri.String(), nil
}

// channel returns the shared publishing channel, reconnecting if the broker
// closed it.
func (qm *QueueManager) channel() (*amqp.Channel, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if qm.ch != nil && !qm.ch.IsClosed() {
		return qm.ch, nil
	}
	if qm.conn == nil || qm.conn.IsClosed() {
		url, err := qm.dialURL()
		if err != nil {
			return nil, err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, err
		}
		qm.conn = conn
	}

	ch, err := qm.conn.Channel()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{qm.cfg.LiquidationQueue, qm.cfg.GovernanceQueue} {
		if _, err := declareQueue(ch, name); err != nil {
			ch.Close()
			return nil, err
		}
	}
	qm.ch = ch
	return ch, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// PublishLiquidation sends a liquidation record to the audit queue.
func (qm *QueueManager) PublishLiquidation(ctx context.Context, msg *LiquidationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ch, err := qm.channel()
	if err != nil {
		metrics.RecordQueueSendError()
		return fmt.Errorf("failed to open queue channel: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, qm.cfg.PublishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, "", qm.cfg.LiquidationQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Unix(msg.Timestamp, 0),
		Body:         body,
	})
	if err != nil {
		metrics.RecordQueueSendError()
		return fmt.Errorf("failed to publish liquidation %s: %w", msg.ID, err)
	}

	qm.logger.Debug("liquidation published", zap.String("id", msg.ID), zap.String("owner", msg.Owner))
	return nil
}

// GovernanceHandler processes one governance update. Returning an error
// requeues the message.
type GovernanceHandler func(ctx context.Context, msg *GovernanceUpdateMessage) error

// ConsumeGovernanceUpdates delivers governance updates to handler one at a
// time until ctx is done. Broken connections are re-established after the
// configured backoff.
func (qm *QueueManager) ConsumeGovernanceUpdates(ctx context.Context, handler GovernanceHandler) error {
	for {
		err := qm.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		qm.logger.Warn("governance consumer interrupted, reconnecting",
			zap.Error(err), zap.Duration("backoff", qm.cfg.ReconnectBackoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(qm.cfg.ReconnectBackoff):
		}
	}
}

func (qm *QueueManager) consumeOnce(ctx context.Context, handler GovernanceHandler) error {
	qm.mu.Lock()
	conn := qm.conn
	qm.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		if _, err := qm.channel(); err != nil {
			return err
		}
		qm.mu.Lock()
		conn = qm.conn
		qm.mu.Unlock()
	}

	// consumers get their own channel so publishing is never blocked by
	// an in flight delivery
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := declareQueue(ch, qm.cfg.GovernanceQueue); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	deliveries, err := ch.Consume(qm.cfg.GovernanceQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("governance delivery channel closed")
			}
			qm.handleDelivery(ctx, d, handler)
		}
	}
}

func (qm *QueueManager) handleDelivery(ctx context.Context, d amqp.Delivery, handler GovernanceHandler) {
	msg, err := DecodeGovernanceUpdate(d.Body)
	if err != nil {
		qm.logger.Error("dropping malformed governance update", zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			qm.logger.Error("failed to nack governance update", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, msg); err != nil {
		qm.logger.Warn("governance update failed, requeueing",
			zap.String("proposal_id", msg.ProposalID), zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			qm.logger.Error("failed to nack governance update", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		qm.logger.Error("failed to ack governance update", zap.Error(err))
	}
}

// Shutdown gracefully stops the interaction with the queue, ensuring all resources are properly released.
func (qm *QueueManager) Shutdown() {
	qm.logger.Info("Shutting down queue manager")

	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.ch != nil {
		if err := qm.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			qm.logger.Error("failed to close queue channel", zap.Error(err))
		}
	}
	if qm.conn != nil {
		if err := qm.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			qm.logger.Error("failed to close queue connection", zap.Error(err))
		}
	}
}
