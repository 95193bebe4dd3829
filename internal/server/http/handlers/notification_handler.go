package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	"github.com/polkiloo/memberpay/internal/server/http/dto"
)

var (
	ackSuccess = dto.NotificationAck{Code: "SUCCESS", Message: "成功"}
	ackFail    = dto.NotificationAck{Code: "FAIL", Message: "失败"}
)

// NotificationHandler receives provider payment notifications.
type NotificationHandler struct {
	facade NotificationFacade
	logger *slog.Logger
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(facade NotificationFacade, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{facade: facade, logger: logger}
}

// Notify handles POST /api/member/notification. The provider retries until it
// receives a 2xx with code SUCCESS, so settlement failures answer FAIL and a
// non-2xx status.
func (h *NotificationHandler) Notify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ackFail)
		return
	}

	headers := wechatpay.NotificationHeaders{
		Timestamp: c.GetHeader("Wechatpay-Timestamp"),
		Nonce:     c.GetHeader("Wechatpay-Nonce"),
		Signature: c.GetHeader("Wechatpay-Signature"),
		Serial:    c.GetHeader("Wechatpay-Serial"),
	}

	tx, err := h.facade.VerifyNotification(headers, body)
	if err != nil {
		h.logger.Warn("payment notification rejected", slog.String("error", err.Error()))
		c.JSON(statusFromError(err), ackFail)
		return
	}

	if !tx.Succeeded() {
		// Only successful payments settle; anything else is acknowledged so
		// the provider stops redelivering it.
		h.logger.Info("ignoring non-success notification",
			slog.String("order", tx.OutTradeNo),
			slog.String("trade_state", tx.TradeState))
		c.JSON(http.StatusOK, ackSuccess)
		return
	}

	if _, err := h.facade.SettlePayment(c.Request.Context(), tx.OutTradeNo, tx.TransactionID); err != nil {
		h.logger.Error("payment settlement failed",
			slog.String("order", tx.OutTradeNo),
			slog.String("error", err.Error()))
		c.JSON(statusFromError(err), ackFail)
		return
	}

	c.JSON(http.StatusOK, ackSuccess)
}
