package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"identity_api_gateway/internal/identity"
)

const sessionKeyPrefix = "verify:session:"

// SessionRepository is the keyed persistence contract for verification
// sessions. Get returns identity.ErrSessionNotFound when no session exists
// for the transaction ID.
type SessionRepository interface {
	Create(ctx context.Context, session *identity.VerificationSession) error
	Get(ctx context.Context, transactionID string) (*identity.VerificationSession, error)
	Update(ctx context.Context, session *identity.VerificationSession) error
}

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionRepository builds a redis-backed session store. Sessions expire
// from the store after ttl; retention beyond the handshake is handled
// elsewhere.
func NewSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *sessionRepository) key(transactionID string) string {
	return sessionKeyPrefix + transactionID
}

func (r *sessionRepository) Create(ctx context.Context, session *identity.VerificationSession) error {
	if session.TransactionID == "" || session.UserID == "" {
		return errors.New("session is missing transaction id or user id")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Transaction IDs are unique per handshake; an existing key means a
	// duplicate issuance and must not be silently overwritten.
	ok, err := r.client.SetNX(ctx, r.key(session.TransactionID), data, r.ttl).Result()
	if err != nil {
		r.logger.Error("failed to create session", zap.Error(err), zap.String("transaction_id", session.TransactionID))
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.TransactionID)
	}

	return nil
}

func (r *sessionRepository) Get(ctx context.Context, transactionID string) (*identity.VerificationSession, error) {
	val, err := r.client.Get(ctx, r.key(transactionID)).Result()
	if err == redis.Nil {
		return nil, identity.ErrSessionNotFound
	}
	if err != nil {
		r.logger.Error("failed to get session", zap.Error(err), zap.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session identity.VerificationSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *identity.VerificationSession) error {
	if session.TransactionID == "" {
		return errors.New("session is missing transaction id")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// KeepTTL so a completed session still ages out on the issuance clock.
	err = r.client.Set(ctx, r.key(session.TransactionID), data, redis.KeepTTL).Err()
	if err != nil {
		r.logger.Error("failed to update session", zap.Error(err), zap.String("transaction_id", session.TransactionID))
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}
