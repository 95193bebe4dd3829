package wechatpay

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
)

// Trade states reported by the provider for a transaction.
const (
	TradeStateSuccess    = "SUCCESS"
	TradeStateNotPay     = "NOTPAY"
	TradeStateUserPaying = "USERPAYING"
	TradeStateClosed     = "CLOSED"
	TradeStateRevoked    = "REVOKED"
	TradeStatePayError   = "PAYERROR"
	TradeStateRefund     = "REFUND"
)

// Closed reports a terminal, unpayable state.
func (t *Transaction) Closed() bool {
	switch t.TradeState {
	case TradeStateClosed, TradeStateRevoked, TradeStatePayError:
		return true
	}
	return false
}

// Transaction is the provider's view of an order, returned by the query API
// and carried inside payment notifications.
type Transaction struct {
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc,omitempty"`
}

// Succeeded reports whether the provider considers the transaction paid.
func (t *Transaction) Succeeded() bool {
	return t.TradeState == TradeStateSuccess
}

// Client exposes the subset of the WeChat Pay v3 API used by the service.
type Client interface {
	// CreateJsapiTransaction registers a prepay transaction for the in-app
	// flow and returns signed, client-usable payment parameters.
	CreateJsapiTransaction(ctx context.Context, description, orderNo string, amount int64, payerOpenID string) (json.RawMessage, error)
	// CreateNativeTransaction registers a prepay transaction for the QR flow
	// and returns the code URL to render.
	CreateNativeTransaction(ctx context.Context, description, orderNo string, amount int64) (string, error)
	// QueryTransaction fetches the current provider-side state of an order.
	QueryTransaction(ctx context.Context, orderNo string) (*Transaction, error)
	// Enabled reports whether the client can reach a live provider.
	Enabled() bool
}

// Disabled is the client used when merchant credentials are absent. Every
// operation fails with ErrPaymentDisabled at call time.
type Disabled struct{}

func (Disabled) CreateJsapiTransaction(context.Context, string, string, int64, string) (json.RawMessage, error) {
	return nil, domainErrors.ErrPaymentDisabled
}

func (Disabled) CreateNativeTransaction(context.Context, string, string, int64) (string, error) {
	return "", domainErrors.ErrPaymentDisabled
}

func (Disabled) QueryTransaction(context.Context, string) (*Transaction, error) {
	return nil, domainErrors.ErrPaymentDisabled
}

func (Disabled) Enabled() bool { return false }

// HTTPClient implements Client against the provider's HTTP API. Requests are
// signed SHA256-RSA2048 with the merchant private key.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger

	appID      string
	mchID      string
	certSerial string
	privateKey *rsa.PrivateKey
	notifyURL  string
}

// NewHTTPClient builds a live gateway client with a bounded request timeout.
func NewHTTPClient(baseURL, appID, mchID, certSerial, notifyURL string, key *rsa.PrivateKey, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	return &HTTPClient{
		baseURL:    parsed,
		logger:     logger,
		appID:      appID,
		mchID:      mchID,
		certSerial: certSerial,
		privateKey: key,
		notifyURL:  notifyURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (c *HTTPClient) Enabled() bool { return true }

type amountBody struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type payerBody struct {
	OpenID string `json:"openid"`
}

type prepayRequest struct {
	AppID       string     `json:"appid"`
	MchID       string     `json:"mchid"`
	Description string     `json:"description"`
	OutTradeNo  string     `json:"out_trade_no"`
	NotifyURL   string     `json:"notify_url"`
	Amount      amountBody `json:"amount"`
	Payer       *payerBody `json:"payer,omitempty"`
}

// CreateJsapiTransaction registers an in-app prepay transaction and derives
// the parameters the mini-program hands to the payment SDK.
func (c *HTTPClient) CreateJsapiTransaction(ctx context.Context, description, orderNo string, amount int64, payerOpenID string) (json.RawMessage, error) {
	req := prepayRequest{
		AppID:       c.appID,
		MchID:       c.mchID,
		Description: description,
		OutTradeNo:  orderNo,
		NotifyURL:   c.notifyURL,
		Amount:      amountBody{Total: amount, Currency: "CNY"},
		Payer:       &payerBody{OpenID: payerOpenID},
	}

	var resp struct {
		PrepayID string `json:"prepay_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/pay/transactions/jsapi", req, &resp); err != nil {
		return nil, err
	}
	if resp.PrepayID == "" {
		return nil, &domainErrors.GatewayError{Op: "jsapi", Err: fmt.Errorf("missing prepay_id")}
	}

	return c.signJsapiParams(resp.PrepayID)
}

// CreateNativeTransaction registers a QR prepay transaction.
func (c *HTTPClient) CreateNativeTransaction(ctx context.Context, description, orderNo string, amount int64) (string, error) {
	req := prepayRequest{
		AppID:       c.appID,
		MchID:       c.mchID,
		Description: description,
		OutTradeNo:  orderNo,
		NotifyURL:   c.notifyURL,
		Amount:      amountBody{Total: amount, Currency: "CNY"},
	}

	var resp struct {
		CodeURL string `json:"code_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/pay/transactions/native", req, &resp); err != nil {
		return "", err
	}
	if resp.CodeURL == "" {
		return "", &domainErrors.GatewayError{Op: "native", Err: fmt.Errorf("missing code_url")}
	}
	return resp.CodeURL, nil
}

// QueryTransaction fetches provider-side state by merchant order number.
func (c *HTTPClient) QueryTransaction(ctx context.Context, orderNo string) (*Transaction, error) {
	path := "/v3/pay/transactions/out-trade-no/" + url.PathEscape(orderNo) + "?mchid=" + url.QueryEscape(c.mchID)

	var tx Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		// The provider answers 404 ORDERNOTEXIST for order numbers it never
		// registered; callers handle those as unknown orders.
		var gwErr *domainErrors.GatewayError
		if errors.As(err, &gwErr) && gwErr.Status == http.StatusNotFound {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// jsapiParams is the signed parameter set consumed by the client payment SDK.
// The timeStamp field doubles as the freshness marker checked before reuse.
type jsapiParams struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

func (c *HTTPClient) signJsapiParams(prepayID string) (json.RawMessage, error) {
	params := jsapiParams{
		AppID:     c.appID,
		TimeStamp: strconv.FormatInt(time.Now().Unix(), 10),
		NonceStr:  newNonce(),
		Package:   "prepay_id=" + prepayID,
		SignType:  "RSA",
	}

	message := params.AppID + "\n" + params.TimeStamp + "\n" + params.NonceStr + "\n" + params.Package + "\n"
	sig, err := signSHA256WithRSA(c.privateKey, []byte(message))
	if err != nil {
		return nil, err
	}
	params.PaySign = sig

	return json.Marshal(params)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		if payload, err = json.Marshal(reqBody); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	endpoint := *c.baseURL
	parsedPath, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path: %w", err)
	}
	endpoint.Path = parsedPath.Path
	endpoint.RawQuery = parsedPath.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	auth, err := c.authorization(method, endpoint.RequestURI(), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domainErrors.GatewayError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domainErrors.GatewayError{Op: method + " " + path, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("gateway request failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return &domainErrors.GatewayError{Op: method + " " + path, Status: resp.StatusCode, RawBody: string(body)}
	}

	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return &domainErrors.GatewayError{Op: method + " " + path, Status: resp.StatusCode, RawBody: string(body), Err: err}
		}
	}
	return nil
}

// authorization builds the WECHATPAY2-SHA256-RSA2048 header for one request.
func (c *HTTPClient) authorization(method, requestURI string, body []byte) (string, error) {
	nonce := newNonce()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := method + "\n" + requestURI + "\n" + timestamp + "\n" + nonce + "\n" + string(body) + "\n"

	sig, err := signSHA256WithRSA(c.privateKey, []byte(message))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		c.mchID, nonce, sig, timestamp, c.certSerial,
	), nil
}
