package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectVerificationCompleted = "identity.verification.completed"

// Publisher announces finished handshakes to downstream consumers. Publishing
// is best-effort from the orchestrator's point of view.
type Publisher interface {
	PublishVerificationCompleted(ctx context.Context, msg VerificationCompletedMessage) error
	Close()
}

// natsConn is the subset of *nats.Conn the client uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

type natsClient struct {
	conn   natsConn
	logger *zap.Logger
}

func NewNATSClient(url string, logger *zap.Logger) (Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsClient{
		conn:   conn,
		logger: logger,
	}, nil
}

// VerificationCompletedMessage is emitted once per finished handshake,
// success or failure.
type VerificationCompletedMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (c *natsClient) PublishVerificationCompleted(_ context.Context, msg VerificationCompletedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal verification completed message", zap.Error(err))
		return fmt.Errorf("failed to marshal verification completed message: %w", err)
	}

	if err := c.conn.Publish(subjectVerificationCompleted, data); err != nil {
		c.logger.Error("failed to publish verification completed message",
			zap.Error(err), zap.String("transaction_id", msg.TransactionID))
		return fmt.Errorf("failed to publish verification completed message: %w", err)
	}

	c.logger.Info("verification completed message published",
		zap.String("transaction_id", msg.TransactionID), zap.String("status", msg.Status))
	return nil
}

func (c *natsClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}
