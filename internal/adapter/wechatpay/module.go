package wechatpay

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/memberpay/internal/config"
)

// Module exposes the gateway client and notification verifier to the fx
// graph. With incomplete merchant credentials both collapse to disabled
// implementations that fail with a typed error on first use.
var Module = fx.Provide(newClient, newVerifier)

type adapterParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p adapterParams) (Client, error) {
	wc := p.Config.Wechat
	if !wc.Configured() {
		p.Logger.Warn("payment gateway disabled: merchant credentials incomplete")
		return Disabled{}, nil
	}

	key, err := LoadPrivateKey(wc.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	return NewHTTPClient(wc.APIBase, wc.AppID, wc.MchID, wc.MchCertSerial, wc.NotifyURL, key, p.Logger)
}

func newVerifier(p adapterParams) (NotificationVerifier, error) {
	wc := p.Config.Wechat
	if !wc.Configured() {
		return DisabledVerifier{}, nil
	}

	cert, err := LoadCertificate(wc.PlatformCertPath)
	if err != nil {
		return nil, err
	}

	return NewVerifier(wc.APIv3Key, p.Logger, cert)
}
