package models

import "time"

// User is a StudyBuddy account as stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Email     string    `db:"email" json:"email"`
	Avatar    *string   `db:"avatar" json:"avatar,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PublicProfile is the subset of a user that other members may see.
type PublicProfile struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Avatar    *string `json:"avatar,omitempty"`
}

// Public returns the user's public profile.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Avatar:    u.Avatar,
	}
}
