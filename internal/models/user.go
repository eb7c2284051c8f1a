package models

import "time"

// User owns all tracked data. Every entity below carries a UserID foreign
// key and is deleted transactionally when the user is purged.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
