package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"studybuddy-chat/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	ErrGroupFull     = errors.New("group is full")
)

// GroupRepository abstracts study group and membership persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int) (models.StudyGroup, error)
	GetGroup(ctx context.Context, groupID string) (models.StudyGroup, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.StudyGroup, error)
	FindMembership(ctx context.Context, groupID, userID string) (*models.GroupMember, error)
	CountMembers(ctx context.Context, groupID string) (int, error)
	AddMember(ctx context.Context, groupID, userID string) (models.GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates a group and enrols the owner atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int) (models.StudyGroup, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.StudyGroup{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.StudyGroup
	if err = tx.QueryRowxContext(ctx, `INSERT INTO study_groups (name, description, owner_id, max_members) VALUES ($1, $2, $3, $4) RETURNING id, name, description, owner_id, max_members, created_at`, name, description, ownerID, maxMembers).
		StructScan(&group); err != nil {
		return models.StudyGroup{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`, group.ID, ownerID, models.RoleOwner); err != nil {
		return models.StudyGroup{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.StudyGroup{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.StudyGroup, error) {
	var group models.StudyGroup
	err := r.db.GetContext(ctx, &group, `SELECT id, name, description, owner_id, max_members, created_at FROM study_groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StudyGroup{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns groups that include the user.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.StudyGroup, error) {
	groups := []models.StudyGroup{}
	err := r.db.SelectContext(ctx, &groups, `SELECT g.id, g.name, g.description, g.owner_id, g.max_members, g.created_at FROM study_groups g INNER JOIN group_members gm ON gm.group_id = g.id WHERE gm.user_id=$1 ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// FindMembership returns the membership record, or nil when absent.
func (r *GroupRepo) FindMembership(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member, `SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CountMembers returns the number of durable members of a group.
func (r *GroupRepo) CountMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_members WHERE group_id=$1`, groupID)
	return count, err
}

// AddMember enrols a user, enforcing capacity and uniqueness. The group row
// is locked so concurrent joins cannot overshoot max_members.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.GroupMember{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var maxMembers int
	err = tx.GetContext(ctx, &maxMembers, `SELECT max_members FROM study_groups WHERE id=$1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return models.GroupMember{}, err
	}
	if err != nil {
		return models.GroupMember{}, err
	}

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID); err != nil {
		return models.GroupMember{}, err
	}
	if exists {
		err = ErrAlreadyMember
		return models.GroupMember{}, err
	}

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_members WHERE group_id=$1`, groupID); err != nil {
		return models.GroupMember{}, err
	}
	if (models.StudyGroup{MaxMembers: maxMembers}).IsFull(count) {
		err = ErrGroupFull
		return models.GroupMember{}, err
	}

	var member models.GroupMember
	if err = tx.QueryRowxContext(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3) RETURNING group_id, user_id, role, joined_at`, groupID, userID, models.RoleMember).
		StructScan(&member); err != nil {
		return models.GroupMember{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.GroupMember{}, err
	}
	return member, nil
}

// RemoveMember deletes a durable membership.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}
