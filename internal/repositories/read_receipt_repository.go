package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// ReadReceiptRepository tracks (message, user) seen pairs.
type ReadReceiptRepository interface {
	ListReadMessageIDs(ctx context.Context, userID int, messageIDs []int) ([]int, error)
	InsertReceipts(ctx context.Context, receipts []models.ReadReceipt) error
	ListReadersByMessage(ctx context.Context, messageIDs []int) (map[int][]models.ReadUser, error)
}

// ReadReceiptRepo is a sqlx-backed implementation.
type ReadReceiptRepo struct {
	db *sqlx.DB
}

// NewReadReceiptRepo constructs a ReadReceiptRepo.
func NewReadReceiptRepo(db *sqlx.DB) *ReadReceiptRepo {
	return &ReadReceiptRepo{db: db}
}

// ListReadMessageIDs returns which of the given messages the user already
// marked seen. Mark-seen pre-computes this set so repeat calls insert
// nothing instead of tripping the unique constraint.
func (r *ReadReceiptRepo) ListReadMessageIDs(ctx context.Context, userID int, messageIDs []int) ([]int, error) {
	if len(messageIDs) == 0 {
		return []int{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT chat_message_id FROM chat_message_reads WHERE user_id = ? AND chat_message_id IN (?)`,
		userID, messageIDs)
	if err != nil {
		return nil, err
	}
	var ids []int
	err = r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...)
	return ids, err
}

// InsertReceipts appends receipt rows. ON CONFLICT DO NOTHING keeps a racing
// duplicate mark-seen harmless.
func (r *ReadReceiptRepo) InsertReceipts(ctx context.Context, receipts []models.ReadReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, receipt := range receipts {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_message_reads (chat_message_id, user_id, read_at)
             VALUES ($1, $2, $3)
             ON CONFLICT (chat_message_id, user_id) DO NOTHING`,
			receipt.ChatMessageID, receipt.UserID, receipt.ReadAt); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

type readerRow struct {
	ChatMessageID int     `db:"chat_message_id"`
	UserID        int     `db:"user_id"`
	Name          string  `db:"name"`
	AvatarPath    *string `db:"avatar_path"`
}

// ListReadersByMessage returns, per message, the users that have seen it.
func (r *ReadReceiptRepo) ListReadersByMessage(ctx context.Context, messageIDs []int) (map[int][]models.ReadUser, error) {
	out := make(map[int][]models.ReadUser, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT r.chat_message_id, r.user_id, u.name, u.avatar_path
         FROM chat_message_reads r
         JOIN users u ON u.id = r.user_id
         WHERE r.chat_message_id IN (?)
         ORDER BY r.read_at ASC`, messageIDs)
	if err != nil {
		return nil, err
	}
	var rows []readerRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		reader := models.ReadUser{ID: row.UserID, Name: row.Name}
		if row.AvatarPath != nil {
			reader.Avatar = *row.AvatarPath
		}
		out[row.ChatMessageID] = append(out[row.ChatMessageID], reader)
	}
	return out, nil
}

// NewReceipt builds a receipt row stamped at the given time.
func NewReceipt(messageID, userID int, at time.Time) models.ReadReceipt {
	return models.ReadReceipt{ChatMessageID: messageID, UserID: userID, ReadAt: at}
}
