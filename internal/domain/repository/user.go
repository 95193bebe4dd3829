package repository

import (
	"context"
	"time"

	"github.com/polkiloo/memberpay/internal/domain/model"
)

// UserRepository describes persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, externalID string) (*model.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	SetMemberExpireAt(ctx context.Context, id int64, expireAt time.Time) error
}
