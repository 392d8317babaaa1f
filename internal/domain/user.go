package domain

import (
	"database/sql"
)

const RoleAdmin = "admin"

type User struct {
	ID            int64          `json:"id"`
	Username      string         `json:"username"`
	Password      string         `json:"password"`
	Role          string         `json:"role"`
	RetryCount    sql.NullInt32  `json:"retryCount"`
	SessionID     sql.NullString `json:"sessionId"`
	ApiKey        sql.NullString `json:"apiKey"`
	SessionExpiry sql.NullTime   `json:"sessionExpiry"`
	Created       sql.NullTime   `json:"created"`
	Enabled       sql.NullBool   `json:"enabled"`
}

// IsAdmin reports whether the user may decide steps assigned to others.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
