package handlers

import (
	"context"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/domain/model"
)

// AuthFacade describes session capabilities required by handlers.
type AuthFacade interface {
	Login(ctx context.Context, externalID string) (*model.User, string, error)
	ParseToken(token string) (int64, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
}

// OrderFacade encapsulates catalog and order operations exposed via HTTP.
type OrderFacade interface {
	Products() []model.Product
	CreateOrder(ctx context.Context, openID, productID string) (*model.PaymentIntent, error)
	CreateNativeOrder(ctx context.Context, openID, productID string) (string, error)
	OrderJsapiParams(ctx context.Context, orderID int64, openID string) (*model.OrderPayment, error)
	PaymentEnabled() bool
}

// NotificationFacade processes provider payment notifications.
type NotificationFacade interface {
	VerifyNotification(headers wechatpay.NotificationHeaders, body []byte) (*wechatpay.Transaction, error)
	SettlePayment(ctx context.Context, orderNo, transactionID string) (bool, error)
}

// MemberFacade aggregates the full set of operations used across handlers.
type MemberFacade interface {
	AuthFacade
	OrderFacade
	NotificationFacade
}

// Pinger reports storage connectivity for the health endpoint.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}
