package models

import (
	"database/sql"
	"strings"
	"time"
)

const RoleTeacher = "teacher"

// User is a directory entry consumed from the shared users table.
type User struct {
	ID         int            `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Role       string         `db:"role" json:"role"`
	Section    sql.NullString `db:"section" json:"-"`
	Course     sql.NullString `db:"course" json:"-"`
	AvatarPath sql.NullString `db:"avatar_path" json:"-"`
}

// Avatar returns the avatar path or empty when unset.
func (u User) Avatar() string {
	if u.AvatarPath.Valid {
		return u.AvatarPath.String
	}
	return ""
}

// Viewer is the authenticated actor performing an operation, resolved by the
// auth middleware from the bearer token.
type Viewer struct {
	ID      int
	Name    string
	Role    string
	Section string
	Course  string
}

// IsTeacher reports whether the viewer holds the privileged role.
func (v Viewer) IsTeacher() bool {
	return strings.EqualFold(v.Role, RoleTeacher)
}

// PresenceUser is one row of the presence listing for a group.
type PresenceUser struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Avatar     string     `json:"avatar,omitempty"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt"`
}
