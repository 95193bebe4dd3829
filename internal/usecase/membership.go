package usecase

import (
	"context"
	"log/slog"

	"github.com/polkiloo/memberpay/internal/catalog"
	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/domain/repository"
)

// MembershipUseCase applies verified payment successes to user memberships.
// It is the only writer of order settlement and membership expiry.
type MembershipUseCase struct {
	orders  repository.OrderRepository
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewMembershipUseCase constructs MembershipUseCase.
func NewMembershipUseCase(orders repository.OrderRepository, products *catalog.Catalog, logger *slog.Logger) *MembershipUseCase {
	return &MembershipUseCase{orders: orders, catalog: products, logger: logger}
}

// HandlePaymentSuccess settles the order and extends the owner's membership
// by the product duration. The settlement is a conditional update inside one
// transaction, so redelivered notifications are no-ops: the method returns
// false and the membership stays untouched.
func (u *MembershipUseCase) HandlePaymentSuccess(ctx context.Context, orderNo, transactionID string) (bool, error) {
	order, err := u.orders.GetByNo(ctx, orderNo)
	if err != nil {
		return false, err
	}

	if order.Status == model.OrderStatusSuccess {
		u.logger.Debug("order already settled", slog.String("order_no", orderNo))
		return false, nil
	}

	product, err := u.catalog.Get(order.ProductID)
	if err != nil {
		// Should be unreachable: orders only reference catalog products.
		u.logger.Error("settled order references unknown product",
			slog.String("order_no", orderNo),
			slog.String("product_id", order.ProductID),
		)
		return false, err
	}

	extended, err := u.orders.Settle(ctx, orderNo, transactionID, product.DurationDays)
	if err != nil {
		return false, err
	}
	if !extended {
		u.logger.Debug("concurrent settlement won", slog.String("order_no", orderNo))
		return false, nil
	}

	u.logger.Info("membership extended",
		slog.String("order_no", orderNo),
		slog.String("transaction_id", transactionID),
		slog.Int("days", product.DurationDays),
	)
	return true, nil
}
