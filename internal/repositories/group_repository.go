package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"classchat-service/internal/models"
)

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, createdBy int, name, section, course string) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroupsForViewer(ctx context.Context, viewer models.Viewer) ([]models.GroupWithCreator, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup persists a group addressed to a section+course audience.
func (r *GroupRepo) CreateGroup(ctx context.Context, createdBy int, name, section, course string) (models.Group, error) {
	var group models.Group
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_groups (name, section, course, created_by)
         VALUES ($1, $2, $3, $4)
         RETURNING id, name, section, course, created_by, created_at`,
		name, section, course, createdBy).StructScan(&group)
	return group, err
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group,
		`SELECT id, name, section, course, created_by, created_at FROM chat_groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForViewer returns groups the viewer may access, newest first.
// Teachers see everything; students only their own section+course, and a
// student with either field unassigned sees nothing.
func (r *GroupRepo) ListGroupsForViewer(ctx context.Context, viewer models.Viewer) ([]models.GroupWithCreator, error) {
	var groups []models.GroupWithCreator
	if viewer.IsTeacher() {
		err := r.db.SelectContext(ctx, &groups,
			`SELECT g.id, g.name, g.section, g.course, g.created_by, g.created_at,
                    COALESCE(u.name, 'Teacher') AS creator_name
             FROM chat_groups g LEFT JOIN users u ON u.id = g.created_by
             ORDER BY g.created_at DESC, g.id DESC`)
		return groups, err
	}
	if viewer.Section == "" || viewer.Course == "" {
		return []models.GroupWithCreator{}, nil
	}
	err := r.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.section, g.course, g.created_by, g.created_at,
                COALESCE(u.name, 'Teacher') AS creator_name
         FROM chat_groups g LEFT JOIN users u ON u.id = g.created_by
         WHERE g.section=$1 AND g.course=$2
         ORDER BY g.created_at DESC, g.id DESC`,
		viewer.Section, viewer.Course)
	return groups, err
}
