package models

import "time"

// Group is a chat addressed to a role+section+course audience. Membership is
// computed from the scope, never stored: teachers belong to every group,
// students belong when their section and course both match.
type Group struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Section   string    `db:"section" json:"section"`
	Course    string    `db:"course" json:"course"`
	CreatedBy int       `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GroupWithCreator joins the creator's name for listing.
type GroupWithCreator struct {
	Group
	CreatorName string `db:"creator_name"`
}

// GroupSummary is the viewer-scoped listing payload.
type GroupSummary struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Section      string        `json:"section"`
	Course       string        `json:"course"`
	CreatedBy    string        `json:"createdBy"`
	IsMuted      bool          `json:"isMuted"`
	MutedUntilAt *time.Time    `json:"mutedUntilAt"`
	Messages     []MessageView `json:"messages"`
}

// MuteSetting is the per (group, user) mute row. A nil MutedAt means not
// muted; a set MutedAt with nil MutedUntil means muted forever. Rows whose
// MutedUntil has passed are logically unmuted and get cleared lazily on read.
type MuteSetting struct {
	ID          int        `db:"id"`
	ChatGroupID int        `db:"chat_group_id"`
	UserID      int        `db:"user_id"`
	MutedAt     *time.Time `db:"muted_at"`
	MutedUntil  *time.Time `db:"muted_until"`
}

// MuteState is the resolved, lazily expired view of a MuteSetting.
type MuteState struct {
	IsMuted      bool       `json:"isMuted"`
	MutedUntilAt *time.Time `json:"mutedUntilAt"`
}
