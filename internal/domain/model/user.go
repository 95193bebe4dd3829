package model

import "time"

// User represents a mini-program user resolved by OAuth openid.
type User struct {
	ID             int64
	ExternalID     string
	MemberExpireAt *time.Time
	CreatedAt      time.Time
}

// MemberActiveAt reports whether the membership is active at the given moment.
func (u *User) MemberActiveAt(now time.Time) bool {
	return u.MemberExpireAt != nil && u.MemberExpireAt.After(now)
}
