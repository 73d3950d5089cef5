package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tripnest/booking-backend/internal/models"
)

const rewardColumns = `id, user_id, origin, amount, status, applies_to, min_transaction,
	description, used_at, expired_at, created_at`

// RewardRepository handles reward reads and the status changes that spend
// or release them
type RewardRepository struct {
	db sqlx.ExtContext
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db sqlx.ExtContext) *RewardRepository {
	return &RewardRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *RewardRepository) WithTx(tx *sqlx.Tx) *RewardRepository {
	return &RewardRepository{db: tx}
}

// ListOwnedByIDs returns the rewards among ids that belong to the user,
// whatever their status
func (r *RewardRepository) ListOwnedByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*models.Reward, error) {
	rewards := []*models.Reward{}
	if len(ids) == 0 {
		return rewards, nil
	}

	query := `
		SELECT ` + rewardColumns + `
		FROM rewards
		WHERE user_id = $1 AND id = ANY($2)
		ORDER BY created_at
	`

	if err := sqlx.SelectContext(ctx, r.db, &rewards, query, userID, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	return rewards, nil
}

// ListAvailable returns a user's spendable rewards, newest first
func (r *RewardRepository) ListAvailable(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.Reward, error) {
	rewards := []*models.Reward{}

	query := `
		SELECT ` + rewardColumns + `
		FROM rewards
		WHERE user_id = $1
		  AND status = 'available'
		  AND (expired_at IS NULL OR expired_at > $2)
		ORDER BY created_at DESC
	`

	if err := sqlx.SelectContext(ctx, r.db, &rewards, query, userID, now); err != nil {
		return nil, fmt.Errorf("failed to list available rewards: %w", err)
	}

	return rewards, nil
}

// GetOwned retrieves one reward of a user. Returns nil, nil when absent.
func (r *RewardRepository) GetOwned(ctx context.Context, userID, id uuid.UUID) (*models.Reward, error) {
	var reward models.Reward

	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1 AND user_id = $2`

	if err := sqlx.GetContext(ctx, r.db, &reward, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}

	return &reward, nil
}

// Claim marks a reward used if it is still available. It reports false when
// another booking spent it first.
func (r *RewardRepository) Claim(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	query := `
		UPDATE rewards
		SET status = 'used', used_at = $2
		WHERE id = $1 AND status = 'available'
	`

	result, err := r.db.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim reward: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows == 1, nil
}

// ReleaseForBooking returns the rewards spent by a booking to available
func (r *RewardRepository) ReleaseForBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	query := `
		UPDATE rewards
		SET status = 'available', used_at = NULL
		WHERE status = 'used'
		  AND id IN (SELECT reward_id FROM booking_rewards WHERE booking_id = $1)
	`

	result, err := r.db.ExecContext(ctx, query, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to release booking rewards: %w", err)
	}

	return result.RowsAffected()
}

// ExpireOverdue marks available rewards past their expiry as expired
func (r *RewardRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE rewards
		SET status = 'expired'
		WHERE status = 'available' AND expired_at IS NOT NULL AND expired_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire rewards: %w", err)
	}

	return result.RowsAffected()
}
