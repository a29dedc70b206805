package models

import "time"

// ReactionView is one aggregated reaction entry, sorted by count descending
// in the projection.
type ReactionView struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// ReplyPreview is the truncated quote of the message being replied to.
type ReplyPreview struct {
	ID           int    `json:"id"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
	Body         string `json:"body"`
	Kind         string `json:"kind"`
}

// MessageView is the full public projection of a message, scoped to a viewer.
// Every message-returning operation speaks this shape.
type MessageView struct {
	ID               int            `json:"id"`
	SenderID         int            `json:"senderId"`
	SenderName       string         `json:"senderName"`
	SenderAvatar     string         `json:"senderAvatar,omitempty"`
	SenderRole       string         `json:"senderRole"`
	ReplyToMessageID *int           `json:"replyToMessageId"`
	Kind             string         `json:"kind"`
	Body             string         `json:"body"`
	CreatedAt        string         `json:"createdAt"`
	CreatedAtIso     string         `json:"createdAtIso"`
	IsScheduled      bool           `json:"isScheduled"`
	ScheduledFor     *time.Time     `json:"scheduledFor"`
	FileName         *string        `json:"fileName"`
	FileSize         *string        `json:"fileSize"`
	ReplyTo          *ReplyPreview  `json:"replyTo"`
	Reactions        []ReactionView `json:"reactions"`
	SeenUsers        []ReadUser     `json:"seenUsers"`
	SeenBy           []string       `json:"seenBy"`
	SeenCount        int            `json:"seenCount"`
	IsDeleted        bool           `json:"isDeleted"`
	IsEdited         bool           `json:"isEdited"`
	CanEdit          bool           `json:"canEdit"`
	CanDelete        bool           `json:"canDelete"`
	CanPin           bool           `json:"canPin"`
	IsPinned         bool           `json:"isPinned"`
}

// Snapshot is the full recomputed group state pushed to live subscribers.
type Snapshot struct {
	Messages      []MessageView  `json:"messages"`
	TypingUsers   []string       `json:"typingUsers"`
	ActiveUsers   []string       `json:"activeUsers"`
	PresenceUsers []PresenceUser `json:"presenceUsers"`
}
