package model

import (
	"encoding/json"
	"time"
)

// OrderStatus describes membership order lifecycle.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusSuccess OrderStatus = "SUCCESS"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// MemberOrder describes a membership purchase order. An order is created
// PENDING and flips to SUCCESS exactly once, on a verified payment
// notification; a gateway failure during creation marks it FAILED.
type MemberOrder struct {
	ID            int64
	OrderNo       string
	UserID        int64
	ProductID     string
	ProductName   string
	Amount        int64 // minor units
	Status        OrderStatus
	PaymentParams json.RawMessage // opaque provider params cached for re-display
	TransactionID *string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// PaymentIntent carries everything the client needs to start paying an order.
type PaymentIntent struct {
	OrderID       int64
	OrderNo       string
	PaymentParams json.RawMessage
}

// OrderPayment is the payload for resuming payment of an existing order.
type OrderPayment struct {
	OrderNo       string
	ProductName   string
	Amount        int64
	PaymentParams json.RawMessage
}
