package test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
)

// GatewayStub implements the payment gateway client for tests. Defaults
// return structurally valid JSAPI parameters and count outbound calls.
type GatewayStub struct {
	JsapiFn  func(ctx context.Context, description, orderNo string, amount int64, payerOpenID string) (json.RawMessage, error)
	NativeFn func(ctx context.Context, description, orderNo string, amount int64) (string, error)
	QueryFn  func(ctx context.Context, orderNo string) (*wechatpay.Transaction, error)

	JsapiCalls  int
	NativeCalls int
	QueryCalls  int
}

// CreateJsapiTransaction returns stub payment parameters carrying the
// timeStamp freshness marker.
func (s *GatewayStub) CreateJsapiTransaction(ctx context.Context, description, orderNo string, amount int64, payerOpenID string) (json.RawMessage, error) {
	s.JsapiCalls++
	if s.JsapiFn != nil {
		return s.JsapiFn(ctx, description, orderNo, amount, payerOpenID)
	}
	params := map[string]string{
		"appId":     "wxstub",
		"timeStamp": strconv.FormatInt(time.Now().Unix(), 10),
		"nonceStr":  "stubnonce",
		"package":   "prepay_id=stub-" + orderNo,
		"signType":  "RSA",
		"paySign":   "stubsign",
	}
	return json.Marshal(params)
}

// CreateNativeTransaction returns a deterministic code URL.
func (s *GatewayStub) CreateNativeTransaction(ctx context.Context, description, orderNo string, amount int64) (string, error) {
	s.NativeCalls++
	if s.NativeFn != nil {
		return s.NativeFn(ctx, description, orderNo, amount)
	}
	return fmt.Sprintf("weixin://wxpay/bizpayurl?pr=%s", orderNo), nil
}

// QueryTransaction reports NOTPAY unless overridden.
func (s *GatewayStub) QueryTransaction(ctx context.Context, orderNo string) (*wechatpay.Transaction, error) {
	s.QueryCalls++
	if s.QueryFn != nil {
		return s.QueryFn(ctx, orderNo)
	}
	return &wechatpay.Transaction{OutTradeNo: orderNo, TradeState: wechatpay.TradeStateNotPay}, nil
}

func (s *GatewayStub) Enabled() bool { return true }

// VerifierStub implements the notification verifier for tests.
type VerifierStub struct {
	VerifyFn func(headers wechatpay.NotificationHeaders, body []byte) (*wechatpay.Transaction, error)
}

// VerifyAndDecrypt delegates to the configured function.
func (s *VerifierStub) VerifyAndDecrypt(headers wechatpay.NotificationHeaders, body []byte) (*wechatpay.Transaction, error) {
	return s.VerifyFn(headers, body)
}
