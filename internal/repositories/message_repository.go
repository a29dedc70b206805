package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

const messageColumns = `id, chat_group_id, sender_id, reply_to_message_id, kind, body,
    file_name, file_size, reactions, published_at, edited_at, deleted_at, deleted_by,
    is_pinned, pinned_at, pinned_by, created_at`

const messageWithSenderColumns = `m.id, m.chat_group_id, m.sender_id, m.reply_to_message_id,
    m.kind, m.body, m.file_name, m.file_size, m.reactions, m.published_at, m.edited_at,
    m.deleted_at, m.deleted_by, m.is_pinned, m.pinned_at, m.pinned_by, m.created_at,
    COALESCE(u.name, 'User') AS sender_name,
    COALESCE(u.role, 'student') AS sender_role,
    u.avatar_path AS sender_avatar`

// visibleScope hides scheduled messages until their publish time; it is part
// of every listing, counting and max-id query, never only the entry point.
const visibleScope = `(m.published_at IS NULL OR m.published_at <= $2)`

// MessageRepository is the durable, ordered, append-mostly message log.
// Mutations are single-row and last-write-wins; there is deliberately no
// version column on messages, so concurrent edit/delete/pin/react races are
// an accepted looseness, not something to lock away.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	GetWithSender(ctx context.Context, messageID int) (models.MessageWithSender, error)
	ListVisible(ctx context.Context, groupID int, now time.Time) ([]models.MessageWithSender, error)
	ListWithSenderByIDs(ctx context.Context, messageIDs []int) ([]models.MessageWithSender, error)
	MaxVisibleID(ctx context.Context, groupID int, now time.Time) (int, error)
	ListVisibleIDsUpTo(ctx context.Context, groupID, maxID, excludeSenderID int, now time.Time) ([]int, error)
	UpdateBody(ctx context.Context, messageID int, body string, editedAt time.Time) (models.Message, error)
	SoftDelete(ctx context.Context, messageID, deletedBy int, at time.Time) (models.Message, error)
	UpdateReactions(ctx context.Context, messageID int, reactions models.ReactionMap) (models.Message, error)
	SetPinned(ctx context.Context, messageID int, pinned bool, pinnedBy int, at time.Time) (models.Message, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message. PublishedAt stays NULL for an immediate
// send so the ordering key falls back to created_at.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var out models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_messages
            (chat_group_id, sender_id, reply_to_message_id, kind, body, file_name, file_size, reactions, published_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING `+messageColumns,
		msg.ChatGroupID, msg.SenderID, msg.ReplyToMessageID, msg.Kind, msg.Body,
		msg.FileName, msg.FileSize, msg.Reactions, msg.PublishedAt).StructScan(&out)
	return out, err
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetWithSender fetches a message joined with its sender's directory fields.
func (r *MessageRepo) GetWithSender(ctx context.Context, messageID int) (models.MessageWithSender, error) {
	var msg models.MessageWithSender
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageWithSenderColumns+`
         FROM chat_messages m LEFT JOIN users u ON u.id = m.sender_id
         WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageWithSender{}, ErrMessageNotFound
	}
	return msg, err
}

// ListVisible returns the group's visible messages in stable order:
// COALESCE(published_at, created_at) ascending, ties broken by id. A
// scheduled message surfaces at its scheduled position once its time passes.
func (r *MessageRepo) ListVisible(ctx context.Context, groupID int, now time.Time) ([]models.MessageWithSender, error) {
	var msgs []models.MessageWithSender
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageWithSenderColumns+`
         FROM chat_messages m LEFT JOIN users u ON u.id = m.sender_id
         WHERE m.chat_group_id=$1 AND `+visibleScope+`
         ORDER BY COALESCE(m.published_at, m.created_at) ASC, m.id ASC`,
		groupID, now)
	return msgs, err
}

// ListWithSenderByIDs fetches the given messages with sender info, used for
// reply previews.
func (r *MessageRepo) ListWithSenderByIDs(ctx context.Context, messageIDs []int) ([]models.MessageWithSender, error) {
	if len(messageIDs) == 0 {
		return []models.MessageWithSender{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+messageWithSenderColumns+`
         FROM chat_messages m LEFT JOIN users u ON u.id = m.sender_id
         WHERE m.id IN (?)`, messageIDs)
	if err != nil {
		return nil, err
	}
	var msgs []models.MessageWithSender
	err = r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), args...)
	return msgs, err
}

// MaxVisibleID resolves the highest visible message id in a group, the
// default mark-seen target. Scheduled-but-unpublished messages never count.
func (r *MessageRepo) MaxVisibleID(ctx context.Context, groupID int, now time.Time) (int, error) {
	var maxID sql.NullInt64
	err := r.db.GetContext(ctx, &maxID,
		`SELECT MAX(m.id) FROM chat_messages m
         WHERE m.chat_group_id=$1 AND `+visibleScope, groupID, now)
	if err != nil {
		return 0, err
	}
	return int(maxID.Int64), nil
}

// ListVisibleIDsUpTo returns visible message ids in the group up to maxID,
// excluding one sender — the receipt candidates for a mark-seen call.
func (r *MessageRepo) ListVisibleIDsUpTo(ctx context.Context, groupID, maxID, excludeSenderID int, now time.Time) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT m.id FROM chat_messages m
         WHERE m.chat_group_id=$1 AND `+visibleScope+` AND m.id <= $3 AND m.sender_id != $4
         ORDER BY m.id ASC`,
		groupID, now, maxID, excludeSenderID)
	return ids, err
}

// UpdateBody applies an edit and stamps edited_at.
func (r *MessageRepo) UpdateBody(ctx context.Context, messageID int, body string, editedAt time.Time) (models.Message, error) {
	var out models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE chat_messages SET body=$2, edited_at=$3 WHERE id=$1
         RETURNING `+messageColumns, messageID, body, editedAt).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return out, err
}

// SoftDelete tombstones the message: content is destructively overwritten,
// reactions and pin state cleared, id and history position preserved.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, deletedBy int, at time.Time) (models.Message, error) {
	var out models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE chat_messages SET
            kind='text', body=$2, file_name=NULL, file_size=NULL,
            reactions='{}'::jsonb, is_pinned=FALSE, pinned_at=NULL, pinned_by=NULL,
            deleted_at=$3, deleted_by=$4
         WHERE id=$1
         RETURNING `+messageColumns,
		messageID, models.TombstoneBody, at, deletedBy).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return out, err
}

// UpdateReactions replaces the reaction map wholesale. Last write wins.
func (r *MessageRepo) UpdateReactions(ctx context.Context, messageID int, reactions models.ReactionMap) (models.Message, error) {
	var out models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE chat_messages SET reactions=$2 WHERE id=$1
         RETURNING `+messageColumns, messageID, reactions).StructScan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return out, err
}

// SetPinned flips pin state, stamping or clearing pinned_at/pinned_by as one
// write so they can never disagree.
func (r *MessageRepo) SetPinned(ctx context.Context, messageID int, pinned bool, pinnedBy int, at time.Time) (models.Message, error) {
	var out models.Message
	var err error
	if pinned {
		err = r.db.QueryRowxContext(ctx,
			`UPDATE chat_messages SET is_pinned=TRUE, pinned_at=$2, pinned_by=$3 WHERE id=$1
             RETURNING `+messageColumns, messageID, at, pinnedBy).StructScan(&out)
	} else {
		err = r.db.QueryRowxContext(ctx,
			`UPDATE chat_messages SET is_pinned=FALSE, pinned_at=NULL, pinned_by=NULL WHERE id=$1
             RETURNING `+messageColumns, messageID).StructScan(&out)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return out, err
}
