package test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/domain/model"
)

// TokenParserStub resolves tokens with fixed results.
type TokenParserStub struct {
	ID  int64
	Err error
}

func (s TokenParserStub) ParseToken(string) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.ID, nil
}

// AuthFacadeStub provides controllable behaviour for login endpoints.
type AuthFacadeStub struct {
	LoginFn   func(context.Context, string) (*model.User, string, error)
	ParseFn   func(string) (int64, error)
	GetByIDFn func(context.Context, int64) (*model.User, error)
}

func (s AuthFacadeStub) Login(ctx context.Context, externalID string) (*model.User, string, error) {
	if s.LoginFn != nil {
		return s.LoginFn(ctx, externalID)
	}
	return &model.User{ID: 1, ExternalID: externalID}, "token", nil
}

func (s AuthFacadeStub) ParseToken(token string) (int64, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return 1, nil
}

func (s AuthFacadeStub) UserByID(ctx context.Context, id int64) (*model.User, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return &model.User{ID: id, ExternalID: "openid-1"}, nil
}

// OrderFacadeStub provides controllable behaviour for order endpoints.
type OrderFacadeStub struct {
	ProductsFn    func() []model.Product
	CreateFn      func(context.Context, string, string) (*model.PaymentIntent, error)
	NativeFn      func(context.Context, string, string) (string, error)
	JsapiParamsFn func(context.Context, int64, string) (*model.OrderPayment, error)
	Enabled       bool
}

// PaymentEnabled reports the configured gateway state, disabled by default.
func (s OrderFacadeStub) PaymentEnabled() bool { return s.Enabled }

func (s OrderFacadeStub) Products() []model.Product {
	if s.ProductsFn != nil {
		return s.ProductsFn()
	}
	return []model.Product{{ID: "month", Name: "月度会员", Price: 990, DurationDays: 30}}
}

func (s OrderFacadeStub) CreateOrder(ctx context.Context, openID, productID string) (*model.PaymentIntent, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, openID, productID)
	}
	return &model.PaymentIntent{
		OrderID:       1,
		OrderNo:       "M1",
		PaymentParams: json.RawMessage(`{"appId":"wx","timeStamp":"1700000000"}`),
	}, nil
}

func (s OrderFacadeStub) CreateNativeOrder(ctx context.Context, openID, productID string) (string, error) {
	if s.NativeFn != nil {
		return s.NativeFn(ctx, openID, productID)
	}
	return "weixin://wxpay/bizpayurl?pr=M1", nil
}

func (s OrderFacadeStub) OrderJsapiParams(ctx context.Context, orderID int64, openID string) (*model.OrderPayment, error) {
	if s.JsapiParamsFn != nil {
		return s.JsapiParamsFn(ctx, orderID, openID)
	}
	return &model.OrderPayment{
		OrderNo:       "M1",
		ProductName:   "月度会员",
		Amount:        990,
		PaymentParams: json.RawMessage(`{"appId":"wx","timeStamp":"1700000000"}`),
	}, nil
}

// NotificationFacadeStub simulates the webhook processing path.
type NotificationFacadeStub struct {
	VerifyFn func(wechatpay.NotificationHeaders, []byte) (*wechatpay.Transaction, error)
	SettleFn func(context.Context, string, string) (bool, error)

	mu          sync.Mutex
	SettleCalls []string
}

func (s *NotificationFacadeStub) VerifyNotification(headers wechatpay.NotificationHeaders, body []byte) (*wechatpay.Transaction, error) {
	if s.VerifyFn != nil {
		return s.VerifyFn(headers, body)
	}
	return &wechatpay.Transaction{OutTradeNo: "M1", TransactionID: "tx", TradeState: wechatpay.TradeStateSuccess}, nil
}

func (s *NotificationFacadeStub) SettlePayment(ctx context.Context, orderNo, transactionID string) (bool, error) {
	s.mu.Lock()
	s.SettleCalls = append(s.SettleCalls, orderNo)
	s.mu.Unlock()
	if s.SettleFn != nil {
		return s.SettleFn(ctx, orderNo, transactionID)
	}
	return true, nil
}

// SettledOrders returns recorded settlement order numbers.
func (s *NotificationFacadeStub) SettledOrders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.SettleCalls...)
}

// MemberFacadeStub aggregates the per-concern stubs into a full facade.
type MemberFacadeStub struct {
	AuthFacadeStub
	OrderFacadeStub
	*NotificationFacadeStub
}

// NewMemberFacadeStub builds a facade stub with default behaviour.
func NewMemberFacadeStub() *MemberFacadeStub {
	return &MemberFacadeStub{NotificationFacadeStub: &NotificationFacadeStub{}}
}

// AbandonCall stores information about AbandonOrder invocations.
type AbandonCall struct {
	OrderID int64
}

// WorkerFacadeStub mimics poller interactions with the payment facade.
type WorkerFacadeStub struct {
	Orders    [][]model.MemberOrder
	OrdersFn  func(context.Context, int) ([]model.MemberOrder, error)
	QueryFn   func(context.Context, string) (*wechatpay.Transaction, error)
	SettleFn  func(context.Context, string, string) (bool, error)
	AbandonFn func(context.Context, int64) error

	Settled   []string
	Abandoned []AbandonCall

	mu              sync.Mutex
	ordersCallCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *WorkerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *WorkerFacadeStub) Unlock() { s.mu.Unlock() }

// StalePendingOrders returns batches from configured queue.
func (s *WorkerFacadeStub) StalePendingOrders(ctx context.Context, limit int) ([]model.MemberOrder, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.ordersCallCount, 1)
	if int(call) <= len(s.Orders) {
		return s.Orders[call-1], nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, nil
}

// QueryPayment returns configured provider state, paid by default.
func (s *WorkerFacadeStub) QueryPayment(ctx context.Context, orderNo string) (*wechatpay.Transaction, error) {
	if s.QueryFn != nil {
		return s.QueryFn(ctx, orderNo)
	}
	return &wechatpay.Transaction{OutTradeNo: orderNo, TransactionID: "tx-" + orderNo, TradeState: wechatpay.TradeStateSuccess}, nil
}

// SettlePayment records settlement requests.
func (s *WorkerFacadeStub) SettlePayment(ctx context.Context, orderNo, transactionID string) (bool, error) {
	if s.SettleFn != nil {
		return s.SettleFn(ctx, orderNo, transactionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Settled = append(s.Settled, orderNo)
	return true, nil
}

// AbandonOrder records abandon requests.
func (s *WorkerFacadeStub) AbandonOrder(ctx context.Context, orderID int64) error {
	if s.AbandonFn != nil {
		return s.AbandonFn(ctx, orderID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Abandoned = append(s.Abandoned, AbandonCall{OrderID: orderID})
	return nil
}
