package test

import (
	"context"
	"encoding/json"
	"time"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
)

// UserRepositoryStub stores users in-memory for tests.
type UserRepositoryStub struct {
	ByExternal map[string]*model.User
	ByID       map[int64]*model.User
	Next       int64
	Err        error
}

// NewUserRepositoryStub constructs stub repository with initialized maps.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{
		ByExternal: make(map[string]*model.User),
		ByID:       make(map[int64]*model.User),
		Next:       1,
	}
}

// Add seeds a user and returns it.
func (s *UserRepositoryStub) Add(externalID string) *model.User {
	user := &model.User{ID: s.Next, ExternalID: externalID, CreatedAt: time.Now()}
	s.Next++
	s.ByExternal[externalID] = user
	s.ByID[user.ID] = user
	return user
}

// Create registers a user unless one already exists.
func (s *UserRepositoryStub) Create(ctx context.Context, externalID string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if _, exists := s.ByExternal[externalID]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	return s.Add(externalID), nil
}

// GetByExternalID fetches a user by openid or returns not found.
func (s *UserRepositoryStub) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.ByExternal[externalID]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrUserNotFound
}

// GetByID fetches a user by identifier or returns not found.
func (s *UserRepositoryStub) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.ByID[id]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrUserNotFound
}

// SetMemberExpireAt updates the membership expiry in place.
func (s *UserRepositoryStub) SetMemberExpireAt(ctx context.Context, id int64, expireAt time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	user, ok := s.ByID[id]
	if !ok {
		return domainErrors.ErrUserNotFound
	}
	user.MemberExpireAt = &expireAt
	return nil
}

// SettleCall records one settlement request observed by the stub.
type SettleCall struct {
	OrderNo       string
	TransactionID string
	DurationDays  int
}

// OrderRepositoryStub keeps orders in a slice and mimics the transactional
// settle semantics of the real storage. Function fields override behaviour.
type OrderRepositoryStub struct {
	CreateFn             func(context.Context, *model.MemberOrder) (*model.MemberOrder, bool, error)
	GetByNoFn            func(context.Context, string) (*model.MemberOrder, error)
	GetByIDFn            func(context.Context, int64) (*model.MemberOrder, error)
	FindPendingFn        func(context.Context, int64, string) (*model.MemberOrder, error)
	SetPaymentParamsFn   func(context.Context, int64, json.RawMessage) error
	MarkFailedFn         func(context.Context, int64) error
	SettleFn             func(context.Context, string, string, int) (bool, error)
	SelectStalePendingFn func(context.Context, time.Time, int) ([]model.MemberOrder, error)

	// Users, when set, receives membership extensions on Settle the way the
	// real storage does inside the settlement transaction.
	Users *UserRepositoryStub

	Orders      []*model.MemberOrder
	NextID      int64
	SettleCalls []SettleCall
	FailedIDs   []int64
	Now         func() time.Time
}

// NewOrderRepositoryStub constructs an empty stub.
func NewOrderRepositoryStub() *OrderRepositoryStub {
	return &OrderRepositoryStub{NextID: 1, Now: time.Now}
}

func (s *OrderRepositoryStub) byNo(orderNo string) *model.MemberOrder {
	for _, o := range s.Orders {
		if o.OrderNo == orderNo {
			return o
		}
	}
	return nil
}

// Create inserts a pending order unless a pending one exists for the same
// user and product, in which case the existing row is returned.
func (s *OrderRepositoryStub) Create(ctx context.Context, order *model.MemberOrder) (*model.MemberOrder, bool, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, order)
	}
	for _, o := range s.Orders {
		if o.UserID == order.UserID && o.ProductID == order.ProductID && o.Status == model.OrderStatusPending {
			copied := *o
			return &copied, false, nil
		}
	}
	stored := *order
	stored.ID = s.NextID
	s.NextID++
	stored.Status = model.OrderStatusPending
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.Now()
	}
	s.Orders = append(s.Orders, &stored)
	copied := stored
	return &copied, true, nil
}

// GetByNo returns the order with the given number.
func (s *OrderRepositoryStub) GetByNo(ctx context.Context, orderNo string) (*model.MemberOrder, error) {
	if s.GetByNoFn != nil {
		return s.GetByNoFn(ctx, orderNo)
	}
	if o := s.byNo(orderNo); o != nil {
		copied := *o
		return &copied, nil
	}
	return nil, domainErrors.ErrOrderNotFound
}

// GetByID returns the order with the given id.
func (s *OrderRepositoryStub) GetByID(ctx context.Context, id int64) (*model.MemberOrder, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	for _, o := range s.Orders {
		if o.ID == id {
			copied := *o
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrOrderNotFound
}

// FindPending returns the most recent pending order for (user, product).
func (s *OrderRepositoryStub) FindPending(ctx context.Context, userID int64, productID string) (*model.MemberOrder, error) {
	if s.FindPendingFn != nil {
		return s.FindPendingFn(ctx, userID, productID)
	}
	var latest *model.MemberOrder
	for _, o := range s.Orders {
		if o.UserID == userID && o.ProductID == productID && o.Status == model.OrderStatusPending {
			if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
				latest = o
			}
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrOrderNotFound
	}
	copied := *latest
	return &copied, nil
}

// SetPaymentParams caches gateway parameters on the order.
func (s *OrderRepositoryStub) SetPaymentParams(ctx context.Context, orderID int64, params json.RawMessage) error {
	if s.SetPaymentParamsFn != nil {
		return s.SetPaymentParamsFn(ctx, orderID, params)
	}
	for _, o := range s.Orders {
		if o.ID == orderID {
			o.PaymentParams = params
			return nil
		}
	}
	return domainErrors.ErrOrderNotFound
}

// MarkFailed flips a pending order to failed.
func (s *OrderRepositoryStub) MarkFailed(ctx context.Context, orderID int64) error {
	if s.MarkFailedFn != nil {
		return s.MarkFailedFn(ctx, orderID)
	}
	s.FailedIDs = append(s.FailedIDs, orderID)
	for _, o := range s.Orders {
		if o.ID == orderID && o.Status == model.OrderStatusPending {
			o.Status = model.OrderStatusFailed
		}
	}
	return nil
}

// Settle mimics the conditional settlement transaction: the flip happens only
// once, and the linked user's membership is extended from max(now, current).
func (s *OrderRepositoryStub) Settle(ctx context.Context, orderNo, transactionID string, durationDays int) (bool, error) {
	if s.SettleFn != nil {
		return s.SettleFn(ctx, orderNo, transactionID, durationDays)
	}
	s.SettleCalls = append(s.SettleCalls, SettleCall{OrderNo: orderNo, TransactionID: transactionID, DurationDays: durationDays})

	order := s.byNo(orderNo)
	if order == nil {
		return false, domainErrors.ErrOrderNotFound
	}
	if order.Status == model.OrderStatusSuccess {
		return false, nil
	}

	now := s.Now()
	order.Status = model.OrderStatusSuccess
	order.TransactionID = &transactionID
	order.PaidAt = &now

	if s.Users != nil {
		if user, ok := s.Users.ByID[order.UserID]; ok {
			base := now
			if user.MemberExpireAt != nil && user.MemberExpireAt.After(now) {
				base = *user.MemberExpireAt
			}
			expire := base.AddDate(0, 0, durationDays)
			user.MemberExpireAt = &expire
		}
	}
	return true, nil
}

// SelectStalePending returns pending orders created before the cutoff.
func (s *OrderRepositoryStub) SelectStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.MemberOrder, error) {
	if s.SelectStalePendingFn != nil {
		return s.SelectStalePendingFn(ctx, cutoff, limit)
	}
	var out []model.MemberOrder
	for _, o := range s.Orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
