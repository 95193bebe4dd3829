package usecase

import (
	"go.uber.org/fx"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/catalog"
	"github.com/polkiloo/memberpay/internal/config"
	"github.com/polkiloo/memberpay/internal/domain/repository"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	NewAuthUseCase,
	newOrderUseCase,
	NewMembershipUseCase,
)

type orderParams struct {
	fx.In

	Users   repository.UserRepository
	Orders  repository.OrderRepository
	Catalog *catalog.Catalog
	Gateway wechatpay.Client
	Config  *config.Config
}

func newOrderUseCase(p orderParams) *OrderUseCase {
	return NewOrderUseCase(p.Users, p.Orders, p.Catalog, p.Gateway, p.Config.OrderReuseWindow)
}
