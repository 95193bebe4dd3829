package wechatpay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
)

func testMerchantKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string, key *rsa.PrivateKey) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(baseURL, "wxapp", "190000", "MCHSERIAL", "https://example.com/notify", key, testLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewHTTPClient("/relative", "a", "m", "s", "n", testMerchantKey(t), testLogger()); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestCreateJsapiTransaction(t *testing.T) {
	key := testMerchantKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/pay/transactions/jsapi" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, `WECHATPAY2-SHA256-RSA2048 mchid="190000"`) {
			t.Fatalf("unexpected authorization header %q", auth)
		}

		var req prepayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OutTradeNo != "M1700000000000000001" {
			t.Fatalf("unexpected order no %s", req.OutTradeNo)
		}
		if req.Amount.Total != 1990 || req.Amount.Currency != "CNY" {
			t.Fatalf("unexpected amount %+v", req.Amount)
		}
		if req.Payer == nil || req.Payer.OpenID != "openid-1" {
			t.Fatalf("unexpected payer %+v", req.Payer)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prepay_id":"wx20prepay"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, key)

	raw, err := client.CreateJsapiTransaction(context.Background(), "会员-月度会员", "M1700000000000000001", 1990, "openid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var params jsapiParams
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if params.Package != "prepay_id=wx20prepay" {
		t.Fatalf("unexpected package %s", params.Package)
	}
	if params.TimeStamp == "" || params.NonceStr == "" {
		t.Fatal("expected timestamp and nonce to be set")
	}
	if params.SignType != "RSA" {
		t.Fatalf("unexpected sign type %s", params.SignType)
	}

	message := params.AppID + "\n" + params.TimeStamp + "\n" + params.NonceStr + "\n" + params.Package + "\n"
	if err := verifySHA256WithRSA(&key.PublicKey, []byte(message), params.PaySign); err != nil {
		t.Fatalf("pay sign does not verify: %v", err)
	}
}

func TestCreateNativeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/pay/transactions/native" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req prepayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Payer != nil {
			t.Fatal("native request must not carry payer")
		}
		_, _ = w.Write([]byte(`{"code_url":"weixin://wxpay/bizpayurl?pr=abc"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, testMerchantKey(t))

	codeURL, err := client.CreateNativeTransaction(context.Background(), "会员-年度会员", "M1700000000000000002", 4990)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codeURL != "weixin://wxpay/bizpayurl?pr=abc" {
		t.Fatalf("unexpected code url %s", codeURL)
	}
}

func TestQueryTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v3/pay/transactions/out-trade-no/") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("mchid") != "190000" {
			t.Fatalf("missing mchid query, got %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"out_trade_no":"M1","transaction_id":"4200001","trade_state":"SUCCESS"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, testMerchantKey(t))

	tx, err := client.QueryTransaction(context.Background(), "M1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.Succeeded() {
		t.Fatalf("expected success state, got %s", tx.TradeState)
	}
	if tx.TransactionID != "4200001" {
		t.Fatalf("unexpected transaction id %s", tx.TransactionID)
	}
}

func TestQueryTransactionUnknownOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"ORDERNOTEXIST","message":"订单不存在"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, testMerchantKey(t))

	_, err := client.QueryTransaction(context.Background(), "M404")
	if !errors.Is(err, domainErrors.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if domainErrors.IsGatewayError(err) {
		t.Fatalf("unknown order must not surface as gateway error: %v", err)
	}
}

func TestGatewayErrorCarriesRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"SIGN_ERROR","message":"bad signature"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, testMerchantKey(t))

	_, err := client.CreateNativeTransaction(context.Background(), "d", "M2", 100)
	if err == nil {
		t.Fatal("expected error")
	}
	if !domainErrors.IsGatewayError(err) {
		t.Fatalf("expected gateway error, got %T", err)
	}
	var ge *domainErrors.GatewayError
	if !errors.As(err, &ge) {
		t.Fatal("expected GatewayError")
	}
	if ge.Status != http.StatusForbidden {
		t.Fatalf("unexpected status %d", ge.Status)
	}
	if !strings.Contains(ge.RawBody, "SIGN_ERROR") {
		t.Fatalf("expected raw body to be kept, got %q", ge.RawBody)
	}
}

func TestDisabledClient(t *testing.T) {
	var c Client = Disabled{}
	if c.Enabled() {
		t.Fatal("disabled client must report disabled")
	}
	if _, err := c.CreateJsapiTransaction(context.Background(), "d", "M1", 1, "o"); err != domainErrors.ErrPaymentDisabled {
		t.Fatalf("expected payment disabled, got %v", err)
	}
	if _, err := c.CreateNativeTransaction(context.Background(), "d", "M1", 1); err != domainErrors.ErrPaymentDisabled {
		t.Fatalf("expected payment disabled, got %v", err)
	}
	if _, err := c.QueryTransaction(context.Background(), "M1"); err != domainErrors.ErrPaymentDisabled {
		t.Fatalf("expected payment disabled, got %v", err)
	}
}
