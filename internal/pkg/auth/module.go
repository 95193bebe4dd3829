package auth

import (
	"github.com/polkiloo/memberpay/internal/config"
	"go.uber.org/fx"
)

// Module provides authentication primitives via fx.
var Module = fx.Provide(newTokenStrategy)

type strategyParams struct {
	fx.In

	Config *config.Config
}

func newTokenStrategy(p strategyParams) Strategy {
	return NewHMACStrategy(p.Config.TokenSecret, Options{})
}
