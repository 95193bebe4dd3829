package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/polkiloo/memberpay/internal/domain/model"
)

// OrderRepository describes persistence operations with membership orders.
type OrderRepository interface {
	// Create inserts a new PENDING order. When a pending order for the same
	// (user, product) already exists, the existing row is returned instead and
	// the second result is false.
	Create(ctx context.Context, order *model.MemberOrder) (*model.MemberOrder, bool, error)
	GetByNo(ctx context.Context, orderNo string) (*model.MemberOrder, error)
	GetByID(ctx context.Context, id int64) (*model.MemberOrder, error)
	FindPending(ctx context.Context, userID int64, productID string) (*model.MemberOrder, error)
	SetPaymentParams(ctx context.Context, orderID int64, params json.RawMessage) error
	// MarkFailed flips a PENDING order to FAILED. Settled orders are left alone.
	MarkFailed(ctx context.Context, orderID int64) error
	// Settle atomically flips the order to SUCCESS and extends the owner's
	// membership by durationDays. Returns false when the order was already
	// settled, which is the idempotent no-op path for repeated notifications.
	Settle(ctx context.Context, orderNo, transactionID string, durationDays int) (bool, error)
	// SelectStalePending returns PENDING orders created before the cutoff,
	// locked for processing by the caller.
	SelectStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.MemberOrder, error)
}
