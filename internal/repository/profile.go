package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"identity_api_gateway/internal/identity"
)

// ProfileRepository propagates verified identity attributes onto the user
// profile record. Callers treat failures as best-effort: the verification
// outcome is already decided when this runs.
type ProfileRepository interface {
	ApplyVerifiedIdentity(ctx context.Context, userID string, extracted identity.ExtractedIdentity) error
}

type dbExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type profileRepository struct {
	db     dbExecer
	logger *zap.Logger
}

func NewProfileRepository(db dbExecer, logger *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

func (r *profileRepository) ApplyVerifiedIdentity(ctx context.Context, userID string, extracted identity.ExtractedIdentity) error {
	query := `
		UPDATE users
		SET phone_verified = TRUE,
		    verified_name = $2,
		    verified_phone = $3,
		    ci = $4,
		    di = $5,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, userID, extracted.UserName, extracted.UserPhone, extracted.CI, extracted.DI)
	if err != nil {
		r.logger.Error("failed to apply verified identity", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to apply verified identity: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user profile for id %s", userID)
	}

	return nil
}
