package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// ReportRepository persists message reports. A user may report a given
// message at most once; Create reports whether this call inserted the row.
type ReportRepository interface {
	Create(ctx context.Context, report models.Report) (created bool, err error)
}

// ReportRepo is a sqlx-backed implementation.
type ReportRepo struct {
	db *sqlx.DB
}

// NewReportRepo constructs a ReportRepo.
func NewReportRepo(db *sqlx.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts the report unless the (message, reporter) pair exists.
func (r *ReportRepo) Create(ctx context.Context, report models.Report) (bool, error) {
	var id int
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_message_reports
            (chat_message_id, chat_group_id, reported_by, reported_user_id, reason, status)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (chat_message_id, reported_by) DO NOTHING
         RETURNING id`,
		report.ChatMessageID, report.ChatGroupID, report.ReportedBy,
		report.ReportedUserID, report.Reason, report.Status).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
