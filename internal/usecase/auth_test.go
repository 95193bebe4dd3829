package usecase

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	pkgAuth "github.com/polkiloo/memberpay/internal/pkg/auth"
	"github.com/polkiloo/memberpay/internal/test"
)

func newAuthFixture() (*AuthUseCase, *test.UserRepositoryStub) {
	users := test.NewUserRepositoryStub()
	strategy := pkgAuth.NewHMACStrategy("test-secret", pkgAuth.Options{})
	return NewAuthUseCase(users, strategy), users
}

func TestLoginCreatesUserOnFirstVisit(t *testing.T) {
	uc, users := newAuthFixture()

	user, token, err := uc.Login(context.Background(), "openid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if _, ok := users.ByExternal["openid-1"]; !ok {
		t.Fatal("expected user row to be created")
	}

	parsed, err := uc.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != user.ID {
		t.Fatalf("token resolves to %d, want %d", parsed, user.ID)
	}
}

func TestLoginReturnsExistingUser(t *testing.T) {
	uc, users := newAuthFixture()
	seeded := users.Add("openid-1")

	user, _, err := uc.Login(context.Background(), "openid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != seeded.ID {
		t.Fatalf("expected existing user %d, got %d", seeded.ID, user.ID)
	}
	if len(users.ByID) != 1 {
		t.Fatalf("expected no duplicate rows, got %d", len(users.ByID))
	}
}

func TestLoginRejectsEmptyExternalID(t *testing.T) {
	uc, _ := newAuthFixture()

	if _, _, err := uc.Login(context.Background(), "   "); !errors.Is(err, domainErrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestParseTokenRejectsEmpty(t *testing.T) {
	uc, _ := newAuthFixture()

	if _, err := uc.ParseToken(""); err != pkgAuth.ErrInvalidToken {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
