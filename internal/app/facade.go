package app

import (
	"context"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/catalog"
	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/usecase"
)

// MemberFacade is the single application surface the HTTP handlers and the
// reconciliation poller talk to.
type MemberFacade struct {
	auth       *usecase.AuthUseCase
	orders     *usecase.OrderUseCase
	membership *usecase.MembershipUseCase
	products   *catalog.Catalog
	verifier   wechatpay.NotificationVerifier
}

func NewMemberFacade(auth *usecase.AuthUseCase, orders *usecase.OrderUseCase, membership *usecase.MembershipUseCase, products *catalog.Catalog, verifier wechatpay.NotificationVerifier) *MemberFacade {
	return &MemberFacade{auth: auth, orders: orders, membership: membership, products: products, verifier: verifier}
}

func (f *MemberFacade) Login(ctx context.Context, externalID string) (*model.User, string, error) {
	return f.auth.Login(ctx, externalID)
}

func (f *MemberFacade) ParseToken(token string) (int64, error) {
	return f.auth.ParseToken(token)
}

func (f *MemberFacade) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return f.auth.GetByID(ctx, id)
}

func (f *MemberFacade) Products() []model.Product {
	return f.products.List()
}

func (f *MemberFacade) CreateOrder(ctx context.Context, openID, productID string) (*model.PaymentIntent, error) {
	return f.orders.Create(ctx, openID, productID)
}

func (f *MemberFacade) CreateNativeOrder(ctx context.Context, openID, productID string) (string, error) {
	return f.orders.CreateNative(ctx, openID, productID)
}

func (f *MemberFacade) OrderJsapiParams(ctx context.Context, orderID int64, openID string) (*model.OrderPayment, error) {
	return f.orders.JsapiParams(ctx, orderID, openID)
}

func (f *MemberFacade) PaymentEnabled() bool {
	return f.orders.PaymentEnabled()
}

func (f *MemberFacade) VerifyNotification(headers wechatpay.NotificationHeaders, body []byte) (*wechatpay.Transaction, error) {
	return f.verifier.VerifyAndDecrypt(headers, body)
}

func (f *MemberFacade) SettlePayment(ctx context.Context, orderNo, transactionID string) (bool, error) {
	return f.membership.HandlePaymentSuccess(ctx, orderNo, transactionID)
}

func (f *MemberFacade) StalePendingOrders(ctx context.Context, limit int) ([]model.MemberOrder, error) {
	return f.orders.StalePending(ctx, limit)
}

func (f *MemberFacade) QueryPayment(ctx context.Context, orderNo string) (*wechatpay.Transaction, error) {
	return f.orders.QueryPayment(ctx, orderNo)
}

func (f *MemberFacade) AbandonOrder(ctx context.Context, orderID int64) error {
	return f.orders.Abandon(ctx, orderID)
}
