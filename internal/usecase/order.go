package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/catalog"
	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/domain/repository"
)

const descriptionPrefix = "番茄控卡-"

// stalePendingAge is how long a pending order may wait for its payment
// notification before the poller starts asking the provider directly.
const stalePendingAge = time.Minute

// OrderUseCase orchestrates membership order creation: pending-order reuse,
// order number generation, and prepay registration at the gateway.
type OrderUseCase struct {
	users       repository.UserRepository
	orders      repository.OrderRepository
	catalog     *catalog.Catalog
	gateway     wechatpay.Client
	reuseWindow time.Duration
	now         func() time.Time
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(users repository.UserRepository, orders repository.OrderRepository, products *catalog.Catalog, gateway wechatpay.Client, reuseWindow time.Duration) *OrderUseCase {
	if reuseWindow <= 0 {
		reuseWindow = time.Hour
	}
	return &OrderUseCase{
		users:       users,
		orders:      orders,
		catalog:     products,
		gateway:     gateway,
		reuseWindow: reuseWindow,
		now:         time.Now,
	}
}

// Create registers an in-app (JSAPI) membership order. A pending order for the
// same user and product created within the reuse window is returned as is, so
// client retries do not produce duplicate prepay transactions.
func (u *OrderUseCase) Create(ctx context.Context, externalUserID, productID string) (*model.PaymentIntent, error) {
	product, user, err := u.resolve(ctx, externalUserID, productID)
	if err != nil {
		return nil, err
	}

	order, reused, err := u.obtainPending(ctx, user.ID, product)
	if err != nil {
		return nil, err
	}

	if reused && hasJsapiParams(order.PaymentParams) {
		return &model.PaymentIntent{OrderID: order.ID, OrderNo: order.OrderNo, PaymentParams: order.PaymentParams}, nil
	}

	params, err := u.gateway.CreateJsapiTransaction(ctx, descriptionPrefix+product.Name, order.OrderNo, order.Amount, user.ExternalID)
	if err != nil {
		if !reused {
			_ = u.orders.MarkFailed(ctx, order.ID)
		}
		return nil, fmt.Errorf("create prepay transaction: %w", err)
	}

	if err := u.orders.SetPaymentParams(ctx, order.ID, params); err != nil {
		return nil, err
	}

	return &model.PaymentIntent{OrderID: order.ID, OrderNo: order.OrderNo, PaymentParams: params}, nil
}

// CreateNative registers a QR (Native) membership order and returns the code
// URL. The pending reuse policy is the same as for the in-app flow.
func (u *OrderUseCase) CreateNative(ctx context.Context, externalUserID, productID string) (string, error) {
	product, user, err := u.resolve(ctx, externalUserID, productID)
	if err != nil {
		return "", err
	}

	order, reused, err := u.obtainPending(ctx, user.ID, product)
	if err != nil {
		return "", err
	}

	if reused {
		if codeURL := nativeCodeURL(order.PaymentParams); codeURL != "" {
			return codeURL, nil
		}
	}

	codeURL, err := u.gateway.CreateNativeTransaction(ctx, descriptionPrefix+product.Name, order.OrderNo, order.Amount)
	if err != nil {
		if !reused {
			_ = u.orders.MarkFailed(ctx, order.ID)
		}
		return "", fmt.Errorf("create native transaction: %w", err)
	}

	params, err := json.Marshal(map[string]string{"code_url": codeURL})
	if err != nil {
		return "", err
	}
	if err := u.orders.SetPaymentParams(ctx, order.ID, params); err != nil {
		return "", err
	}

	return codeURL, nil
}

// JsapiParams re-derives payment parameters for an existing order when the
// client resumes payment. Cached parameters are reused while structurally
// valid; otherwise a fresh prepay transaction is requested.
func (u *OrderUseCase) JsapiParams(ctx context.Context, orderID int64, externalUserID string) (*model.OrderPayment, error) {
	order, err := u.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusSuccess {
		return nil, domainErrors.ErrAlreadyPaid
	}

	user, err := u.users.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	if user.ExternalID != externalUserID {
		return nil, domainErrors.ErrForbidden
	}

	if hasJsapiParams(order.PaymentParams) {
		return &model.OrderPayment{
			OrderNo:       order.OrderNo,
			ProductName:   order.ProductName,
			Amount:        order.Amount,
			PaymentParams: order.PaymentParams,
		}, nil
	}

	params, err := u.gateway.CreateJsapiTransaction(ctx, descriptionPrefix+order.ProductName, order.OrderNo, order.Amount, user.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("refresh prepay transaction: %w", err)
	}
	if err := u.orders.SetPaymentParams(ctx, order.ID, params); err != nil {
		return nil, err
	}

	return &model.OrderPayment{
		OrderNo:       order.OrderNo,
		ProductName:   order.ProductName,
		Amount:        order.Amount,
		PaymentParams: params,
	}, nil
}

// StalePending lists pending orders old enough for provider reconciliation.
func (u *OrderUseCase) StalePending(ctx context.Context, limit int) ([]model.MemberOrder, error) {
	return u.orders.SelectStalePending(ctx, u.now().Add(-stalePendingAge), limit)
}

// QueryPayment asks the provider for the current state of an order.
func (u *OrderUseCase) QueryPayment(ctx context.Context, orderNo string) (*wechatpay.Transaction, error) {
	return u.gateway.QueryTransaction(ctx, orderNo)
}

// PaymentEnabled reports whether a live payment provider is configured.
func (u *OrderUseCase) PaymentEnabled() bool {
	return u.gateway.Enabled()
}

// Abandon marks a pending order that can no longer be paid as failed.
func (u *OrderUseCase) Abandon(ctx context.Context, orderID int64) error {
	return u.orders.MarkFailed(ctx, orderID)
}

func (u *OrderUseCase) resolve(ctx context.Context, externalUserID, productID string) (model.Product, *model.User, error) {
	product, err := u.catalog.Get(productID)
	if err != nil {
		return model.Product{}, nil, err
	}

	user, err := u.users.GetByExternalID(ctx, externalUserID)
	if err != nil {
		return model.Product{}, nil, err
	}

	return product, user, nil
}

// obtainPending returns a reusable pending order for (user, product) or
// creates a fresh one. A pending order older than the reuse window is marked
// failed first, which also releases the per-(user, product) uniqueness slot.
func (u *OrderUseCase) obtainPending(ctx context.Context, userID int64, product model.Product) (*model.MemberOrder, bool, error) {
	pending, err := u.orders.FindPending(ctx, userID, product.ID)
	if err != nil && !errors.Is(err, domainErrors.ErrOrderNotFound) {
		return nil, false, err
	}

	now := u.now()
	if pending != nil {
		if now.Sub(pending.CreatedAt) < u.reuseWindow {
			return pending, true, nil
		}
		if err := u.orders.MarkFailed(ctx, pending.ID); err != nil {
			return nil, false, err
		}
	}

	order := &model.MemberOrder{
		OrderNo:     newOrderNo(now, userID),
		UserID:      userID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Amount:      product.Price,
		Status:      model.OrderStatusPending,
	}

	created, isNew, err := u.orders.Create(ctx, order)
	if err != nil {
		return nil, false, err
	}
	// A concurrent request can win the insert race; the unique pending index
	// then hands us its row, which is the reuse case.
	return created, !isNew, nil
}

// newOrderNo derives an externally visible order number from the creation
// time and the user id, e.g. M1700000000000000042.
func newOrderNo(now time.Time, userID int64) string {
	return fmt.Sprintf("M%d%06d", now.UnixMilli(), userID)
}

// hasJsapiParams checks the provider-specific freshness marker that only
// signed JSAPI parameter sets carry.
func hasJsapiParams(params json.RawMessage) bool {
	if len(params) == 0 {
		return false
	}
	var probe struct {
		TimeStamp string `json:"timeStamp"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return false
	}
	return probe.TimeStamp != ""
}

func nativeCodeURL(params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	var probe struct {
		CodeURL string `json:"code_url"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return ""
	}
	return probe.CodeURL
}
