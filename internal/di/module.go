package di

import (
	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/app"
	"github.com/polkiloo/memberpay/internal/catalog"
	"github.com/polkiloo/memberpay/internal/config"
	"github.com/polkiloo/memberpay/internal/logger"
	"github.com/polkiloo/memberpay/internal/pkg/auth"
	"github.com/polkiloo/memberpay/internal/server/http/handlers"
	"github.com/polkiloo/memberpay/internal/server/http/router"
	"github.com/polkiloo/memberpay/internal/storage/postgres"
	"github.com/polkiloo/memberpay/internal/usecase"
	"go.uber.org/fx"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		catalog.Module,
		wechatpay.Module,
		usecase.Module,
		fx.Provide(
			func(f *app.MemberFacade) handlers.MemberFacade { return f },
			func(s *postgres.Storage) handlers.Pinger { return s },
		),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
