package dto

import "encoding/json"

// CreateOrderRequest describes a membership purchase request.
type CreateOrderRequest struct {
	ExternalUserID string `json:"externalUserId"`
	ProductID      string `json:"productId"`
}

// CreateOrderResponse returns the order identity and provider payment params.
type CreateOrderResponse struct {
	OrderID       int64           `json:"orderId"`
	OrderNo       string          `json:"orderNo"`
	PaymentParams json.RawMessage `json:"paymentParams"`
}

// NativeOrderResponse returns the QR payment link.
type NativeOrderResponse struct {
	CodeURL string `json:"codeUrl"`
}

// JsapiParamsResponse returns refreshed payment parameters for an order.
type JsapiParamsResponse struct {
	OrderNo       string          `json:"orderNo"`
	ProductName   string          `json:"productName"`
	Amount        int64           `json:"amount"`
	PaymentParams json.RawMessage `json:"paymentParams"`
}

// MockPayRequest settles an order without a provider, development only.
type MockPayRequest struct {
	OrderNo string `json:"orderNo"`
}
