package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/memberpay/internal/adapter/wechatpay"
	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
)

// PaymentFacade exposes the subset of application functionality required by the poller.
type PaymentFacade interface {
	StalePendingOrders(ctx context.Context, limit int) ([]model.MemberOrder, error)
	QueryPayment(ctx context.Context, orderNo string) (*wechatpay.Transaction, error)
	SettlePayment(ctx context.Context, orderNo, transactionID string) (bool, error)
	AbandonOrder(ctx context.Context, orderID int64) error
}

// OrderPoller reconciles pending orders against the provider. Payment
// notifications can be lost; the poller queries the provider for orders that
// stayed pending too long and settles or abandons them.
type OrderPoller struct {
	facade       PaymentFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.MemberOrder
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewOrderPoller constructs the reconciliation worker pool.
func NewOrderPoller(facade PaymentFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *OrderPoller {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &OrderPoller{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.MemberOrder, batchSize*workers),
	}
}

// Start launches background processing.
func (p *OrderPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *OrderPoller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *OrderPoller) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *OrderPoller) fetchAndDispatch(ctx context.Context) {
	orders, err := p.facade.StalePendingOrders(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("fetch stale pending orders failed", slog.String("error", err.Error()))
		return
	}
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- order:
		}
	}
}

func (p *OrderPoller) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleOrder(ctx, order)
		}
	}
}

func (p *OrderPoller) handleOrder(ctx context.Context, order model.MemberOrder) {
	tx, err := p.facade.QueryPayment(ctx, order.OrderNo)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPaymentDisabled) {
			return
		}
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			// The provider never saw this order: the prepay call failed
			// before registration, nothing will ever pay it.
			if err := p.facade.AbandonOrder(ctx, order.ID); err != nil {
				p.logger.Error("abandon unregistered order failed", slog.String("order", order.OrderNo), slog.String("error", err.Error()))
			}
			return
		}
		p.logger.Error("payment query failed", slog.String("order", order.OrderNo), slog.String("error", err.Error()))
		return
	}

	switch {
	case tx.Succeeded():
		extended, err := p.facade.SettlePayment(ctx, order.OrderNo, tx.TransactionID)
		if err != nil {
			p.logger.Error("settle recovered payment failed", slog.String("order", order.OrderNo), slog.String("error", err.Error()))
			return
		}
		if extended {
			p.logger.Info("recovered lost payment notification",
				slog.String("order", order.OrderNo),
				slog.String("transaction_id", tx.TransactionID))
		}
	case tx.Closed():
		if err := p.facade.AbandonOrder(ctx, order.ID); err != nil {
			p.logger.Error("abandon closed order failed", slog.String("order", order.OrderNo), slog.String("error", err.Error()))
		}
	default:
		// NOTPAY or USERPAYING: the customer may still pay, leave it alone.
	}
}
