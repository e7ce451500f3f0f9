package models

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// StudyGroup represents a study group. MaxMembers of zero means no limit.
type StudyGroup struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OwnerID     string    `db:"owner_id" json:"ownerId"`
	MaxMembers  int       `db:"max_members" json:"maxMembers"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// IsFull reports whether a group with memberCount members accepts no one else.
func (g StudyGroup) IsFull(memberCount int) bool {
	return g.MaxMembers > 0 && memberCount >= g.MaxMembers
}

// GroupMember is a durable membership record.
type GroupMember struct {
	GroupID  string    `db:"group_id" json:"groupId"`
	UserID   string    `db:"user_id" json:"userId"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// GroupDetail is a group together with its current member count.
type GroupDetail struct {
	StudyGroup
	MemberCount int `json:"memberCount"`
}
