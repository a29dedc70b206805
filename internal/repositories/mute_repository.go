package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// MuteRepository stores one row per (group, user) mute setting. Expiry is
// lazy: rows whose muted_until has passed are cleared back to null/null by
// the next reader, not by a background sweep.
type MuteRepository interface {
	Get(ctx context.Context, groupID, userID int) (*models.MuteSetting, error)
	ListForUser(ctx context.Context, userID int) ([]models.MuteSetting, error)
	Upsert(ctx context.Context, groupID, userID int, mutedAt, mutedUntil *time.Time) error
	ClearExpired(ctx context.Context, settingIDs []int) error
}

// MuteRepo is a sqlx-backed implementation.
type MuteRepo struct {
	db *sqlx.DB
}

// NewMuteRepo constructs a MuteRepo.
func NewMuteRepo(db *sqlx.DB) *MuteRepo {
	return &MuteRepo{db: db}
}

// Get fetches the raw setting row, nil when absent.
func (r *MuteRepo) Get(ctx context.Context, groupID, userID int) (*models.MuteSetting, error) {
	var setting models.MuteSetting
	err := r.db.GetContext(ctx, &setting,
		`SELECT id, chat_group_id, user_id, muted_at, muted_until
         FROM chat_group_user_settings WHERE chat_group_id=$1 AND user_id=$2`,
		groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ListForUser returns every muted row for the user.
func (r *MuteRepo) ListForUser(ctx context.Context, userID int) ([]models.MuteSetting, error) {
	var settings []models.MuteSetting
	err := r.db.SelectContext(ctx, &settings,
		`SELECT id, chat_group_id, user_id, muted_at, muted_until
         FROM chat_group_user_settings WHERE user_id=$1 AND muted_at IS NOT NULL`,
		userID)
	return settings, err
}

// Upsert writes the single row for (group, user).
func (r *MuteRepo) Upsert(ctx context.Context, groupID, userID int, mutedAt, mutedUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_group_user_settings (chat_group_id, user_id, muted_at, muted_until, updated_at)
         VALUES ($1, $2, $3, $4, NOW())
         ON CONFLICT (chat_group_id, user_id)
         DO UPDATE SET muted_at=$3, muted_until=$4, updated_at=NOW()`,
		groupID, userID, mutedAt, mutedUntil)
	return err
}

// ClearExpired resets lapsed rows to unmuted.
func (r *MuteRepo) ClearExpired(ctx context.Context, settingIDs []int) error {
	if len(settingIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE chat_group_user_settings SET muted_at=NULL, muted_until=NULL, updated_at=NOW() WHERE id IN (?)`,
		settingIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}
