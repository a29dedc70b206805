package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// UserRepository reads the shared directory of teachers and students. The
// candidate audience of a group is teachers plus students matching the
// group's section and course; membership is never stored.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	ListParticipants(ctx context.Context, section, course string) ([]models.User, error)
	ListTeacherIDs(ctx context.Context) ([]int, error)
	ListRecipientIDs(ctx context.Context, excludeID int, section, course string) ([]int, error)
}

// UserRepo is a sqlx-backed implementation.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a single directory entry.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, role, section, course, avatar_path FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListParticipants returns the candidate audience of a group, name ascending.
func (r *UserRepo) ListParticipants(ctx context.Context, section, course string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, name, role, section, course, avatar_path FROM users
         WHERE role='teacher' OR (section=$1 AND course=$2)
         ORDER BY name ASC`, section, course)
	return users, err
}

// ListTeacherIDs returns every privileged user's id.
func (r *UserRepo) ListTeacherIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE role='teacher'`)
	return ids, err
}

// ListRecipientIDs returns the audience minus one user, for notification
// fan-out after a send.
func (r *UserRepo) ListRecipientIDs(ctx context.Context, excludeID int, section, course string) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM users
         WHERE id != $1 AND (role='teacher' OR (section=$2 AND course=$3))`,
		excludeID, section, course)
	return ids, err
}
