package usecase

import (
	"context"
	"errors"
	"strings"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/domain/repository"
	pkgAuth "github.com/polkiloo/memberpay/internal/pkg/auth"
)

// AuthUseCase resolves mini-program users by openid and manages session
// tokens. There is no password flow: identity comes from the OAuth exchange
// performed by the client.
type AuthUseCase struct {
	users  repository.UserRepository
	tokens pkgAuth.Strategy
}

// NewAuthUseCase constructs AuthUseCase.
func NewAuthUseCase(users repository.UserRepository, strategy pkgAuth.Strategy) *AuthUseCase {
	return &AuthUseCase{users: users, tokens: strategy}
}

// Login resolves or creates the user for the given openid and issues a
// session token.
func (u *AuthUseCase) Login(ctx context.Context, externalID string) (*model.User, string, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, "", domainErrors.ErrInvalidArgument
	}

	usr, err := u.users.GetByExternalID(ctx, externalID)
	if errors.Is(err, domainErrors.ErrUserNotFound) {
		usr, err = u.users.Create(ctx, externalID)
		if errors.Is(err, domainErrors.ErrAlreadyExists) {
			// Lost a concurrent first-login race; the row exists now.
			usr, err = u.users.GetByExternalID(ctx, externalID)
		}
	}
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.IssueToken(usr.ID)
	if err != nil {
		return nil, "", err
	}

	return usr, token, nil
}

// ParseToken extracts user ID from provided token.
func (u *AuthUseCase) ParseToken(token string) (int64, error) {
	if token == "" {
		return 0, pkgAuth.ErrInvalidToken
	}
	return u.tokens.ParseToken(token)
}

// GetByID fetches user by identifier.
func (u *AuthUseCase) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return u.users.GetByID(ctx, id)
}
