package auth

import "time"

// Strategy issues and validates session tokens for mini-program users.
type Strategy interface {
	IssueToken(userID int64) (string, error)
	ParseToken(token string) (int64, error)
	Name() string
}

// Options tunes token issuance; a zero TTL falls back to the default.
type Options struct {
	TTL time.Duration
}
