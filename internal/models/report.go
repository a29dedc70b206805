package models

import "time"

// ReportStatusOpen is the initial status of every report.
const ReportStatusOpen = "open"

// Report is a (message, reporter) unique pair with denormalized group and
// reported-user ids so moderators can query without joins.
type Report struct {
	ID             int       `db:"id"`
	ChatMessageID  int       `db:"chat_message_id"`
	ChatGroupID    int       `db:"chat_group_id"`
	ReportedBy     int       `db:"reported_by"`
	ReportedUserID int       `db:"reported_user_id"`
	Reason         *string   `db:"reason"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}
