package dto

import "time"

// LoginRequest carries the mini-program identity for session issuance.
type LoginRequest struct {
	ExternalID string `json:"externalId"`
}

// LoginResponse returns the session token together with membership state.
type LoginResponse struct {
	Token          string     `json:"token"`
	UserID         int64      `json:"userId"`
	MemberExpireAt *time.Time `json:"memberExpireAt,omitempty"`
	MemberActive   bool       `json:"memberActive"`
}

// UserResponse describes the authenticated user's membership state.
type UserResponse struct {
	UserID         int64      `json:"userId"`
	ExternalID     string     `json:"externalId"`
	MemberExpireAt *time.Time `json:"memberExpireAt,omitempty"`
	MemberActive   bool       `json:"memberActive"`
}
