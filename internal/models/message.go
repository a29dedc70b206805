package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds. Body interpretation depends on the kind: text-ish kinds
// carry the literal text, file/image carry a storage path, link/gif/sticker
// carry a URL.
const (
	KindText    = "text"
	KindQuiz    = "quiz"
	KindFile    = "file"
	KindImage   = "image"
	KindGif     = "gif"
	KindSticker = "sticker"
	KindEmoji   = "emoji"
	KindLink    = "link"
)

// TombstoneBody replaces the body of a soft-deleted message.
const TombstoneBody = "This message was removed."

// ReactionMap maps emoji to the set of user ids that reacted. Entries with an
// empty user set are never persisted. Stored as jsonb.
type ReactionMap map[string][]int

// Value implements driver.Valuer for jsonb columns.
func (r ReactionMap) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for jsonb columns.
func (r *ReactionMap) Scan(src any) error {
	if src == nil {
		*r = ReactionMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("reactions: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*r = ReactionMap{}
		return nil
	}
	return json.Unmarshal(raw, r)
}

// Normalize drops malformed entries and dedupes user ids, mirroring how raw
// jsonb read back from the column is sanitized before use.
func (r ReactionMap) Normalize() ReactionMap {
	out := ReactionMap{}
	for emoji, userIDs := range r {
		if emoji == "" || len(userIDs) == 0 {
			continue
		}
		seen := make(map[int]struct{}, len(userIDs))
		ids := make([]int, 0, len(userIDs))
		for _, id := range userIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		out[emoji] = ids
	}
	return out
}

// Toggle flips the user's membership in the emoji's reaction set and prunes
// the emoji key when its set becomes empty. Self-inverse by construction.
func (r ReactionMap) Toggle(emoji string, userID int) ReactionMap {
	out := r.Normalize()
	ids := out[emoji]
	for i, id := range ids {
		if id == userID {
			ids = append(ids[:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(out, emoji)
			} else {
				out[emoji] = ids
			}
			return out
		}
	}
	out[emoji] = append(ids, userID)
	return out
}

// Message is one durable chat message. PublishedAt nil means "visible now";
// a future PublishedAt keeps the message hidden from every reader until the
// scheduled time arrives, and it then sorts by that scheduled time.
type Message struct {
	ID               int         `db:"id" json:"id"`
	ChatGroupID      int         `db:"chat_group_id" json:"chat_group_id"`
	SenderID         int         `db:"sender_id" json:"sender_id"`
	ReplyToMessageID *int        `db:"reply_to_message_id" json:"reply_to_message_id"`
	Kind             string      `db:"kind" json:"kind"`
	Body             string      `db:"body" json:"body"`
	FileName         *string     `db:"file_name" json:"file_name"`
	FileSize         *string     `db:"file_size" json:"file_size"`
	Reactions        ReactionMap `db:"reactions" json:"reactions"`
	PublishedAt      *time.Time  `db:"published_at" json:"published_at"`
	EditedAt         *time.Time  `db:"edited_at" json:"edited_at"`
	DeletedAt        *time.Time  `db:"deleted_at" json:"deleted_at"`
	DeletedBy        *int        `db:"deleted_by" json:"deleted_by"`
	IsPinned         bool        `db:"is_pinned" json:"is_pinned"`
	PinnedAt         *time.Time  `db:"pinned_at" json:"pinned_at"`
	PinnedBy         *int        `db:"pinned_by" json:"pinned_by"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// IsDeleted reports whether the message has been tombstoned.
func (m Message) IsDeleted() bool { return m.DeletedAt != nil }

// EffectiveTime is the ordering key: COALESCE(published_at, created_at).
func (m Message) EffectiveTime() time.Time {
	if m.PublishedAt != nil {
		return *m.PublishedAt
	}
	return m.CreatedAt
}

// MessageWithSender joins the sender's directory fields onto a message row.
type MessageWithSender struct {
	Message
	SenderName   string  `db:"sender_name"`
	SenderRole   string  `db:"sender_role"`
	SenderAvatar *string `db:"sender_avatar"`
}

// ReadUser is one user that has seen a message.
type ReadUser struct {
	ID     int    `db:"user_id" json:"id"`
	Name   string `db:"name" json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ReadReceipt is the durable (message, user) seen pair.
type ReadReceipt struct {
	ChatMessageID int       `db:"chat_message_id"`
	UserID        int       `db:"user_id"`
	ReadAt        time.Time `db:"read_at"`
}
