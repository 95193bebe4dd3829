package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/server/http/dto"
)

// MemberHandler manages catalog and order endpoints.
type MemberHandler struct {
	facade MemberFacade
}

// NewMemberHandler constructs MemberHandler.
func NewMemberHandler(facade MemberFacade) *MemberHandler {
	return &MemberHandler{facade: facade}
}

// Products handles GET /api/member/products.
func (h *MemberHandler) Products(c *gin.Context) {
	products := h.facade.Products()

	response := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		response = append(response, toProductResponse(p))
	}

	c.JSON(http.StatusOK, response)
}

// CreateOrder handles POST /api/member/orders.
func (h *MemberHandler) CreateOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}

	intent, err := h.facade.CreateOrder(c.Request.Context(), req.ExternalUserID, req.ProductID)
	if err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.JSON(http.StatusOK, dto.CreateOrderResponse{
		OrderID:       intent.OrderID,
		OrderNo:       intent.OrderNo,
		PaymentParams: intent.PaymentParams,
	})
}

// CreateNativeOrder handles POST /api/member/orders/native.
func (h *MemberHandler) CreateNativeOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}

	codeURL, err := h.facade.CreateNativeOrder(c.Request.Context(), req.ExternalUserID, req.ProductID)
	if err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.JSON(http.StatusOK, dto.NativeOrderResponse{CodeURL: codeURL})
}

// JsapiParams handles GET /api/member/jsapi-params.
func (h *MemberHandler) JsapiParams(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Query("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	externalUserID := strings.TrimSpace(c.Query("externalUserId"))
	if externalUserID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	payment, err := h.facade.OrderJsapiParams(c.Request.Context(), orderID, externalUserID)
	if err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.JSON(http.StatusOK, dto.JsapiParamsResponse{
		OrderNo:       payment.OrderNo,
		ProductName:   payment.ProductName,
		Amount:        payment.Amount,
		PaymentParams: payment.PaymentParams,
	})
}

// MockPay handles POST /api/member/mock-pay. The route settles an order
// without a provider round trip and exists only while the gateway is not
// configured, so it can never shadow real payments.
func (h *MemberHandler) MockPay(c *gin.Context) {
	if h.facade.PaymentEnabled() {
		c.Status(http.StatusNotFound)
		return
	}

	var req dto.MockPayRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OrderNo) == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if _, err := h.facade.SettlePayment(c.Request.Context(), req.OrderNo, "mock-"+uuid.NewString()); err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.Status(http.StatusOK)
}

func bindOrderRequest(c *gin.Context) (dto.CreateOrderRequest, bool) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.ExternalUserID) == "" || strings.TrimSpace(req.ProductID) == "" {
		c.Status(http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func toProductResponse(p model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		DurationDays:  p.DurationDays,
		Recommend:     p.Recommend,
	}
}
