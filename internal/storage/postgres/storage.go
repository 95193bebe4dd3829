package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/memberpay/internal/domain/errors"
	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/domain/repository"
)

// pgxPool is the subset of pgxpool.Pool the storage depends on; it lets
// tests substitute a mock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type userRepository struct {
	storage *Storage
}

type orderRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Users() repository.UserRepository {
	return &userRepository{storage: s}
}

func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            external_id TEXT UNIQUE NOT NULL,
            member_expire_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS member_orders (
            id SERIAL PRIMARY KEY,
            order_no TEXT UNIQUE NOT NULL,
            user_id BIGINT NOT NULL REFERENCES users(id),
            product_id TEXT NOT NULL,
            product_name TEXT NOT NULL,
            amount BIGINT NOT NULL,
            status TEXT NOT NULL,
            payment_params JSONB,
            transaction_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            paid_at TIMESTAMPTZ
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_member_orders_pending
            ON member_orders(user_id, product_id) WHERE status = 'PENDING'`,
		`CREATE INDEX IF NOT EXISTS idx_member_orders_user ON member_orders(user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- UserRepository implementation ---

func (r *userRepository) Create(ctx context.Context, externalID string) (*model.User, error) {
	const query = `INSERT INTO users (external_id) VALUES ($1) RETURNING id, created_at`
	var u model.User
	err := r.storage.pool.QueryRow(ctx, query, externalID).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	u.ExternalID = externalID
	return &u, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	const query = `SELECT id, external_id, member_expire_at, created_at FROM users WHERE external_id=$1`
	var u model.User
	err := r.storage.pool.QueryRow(ctx, query, externalID).Scan(&u.ID, &u.ExternalID, &u.MemberExpireAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT id, external_id, member_expire_at, created_at FROM users WHERE id=$1`
	var u model.User
	err := r.storage.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.ExternalID, &u.MemberExpireAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) SetMemberExpireAt(ctx context.Context, id int64, expireAt time.Time) error {
	const query = `UPDATE users SET member_expire_at=$1 WHERE id=$2`
	tag, err := r.storage.pool.Exec(ctx, query, expireAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

// --- OrderRepository implementation ---

const orderColumns = `id, order_no, user_id, product_id, product_name, amount, status, payment_params, transaction_id, created_at, paid_at`

func scanOrder(row pgx.Row) (*model.MemberOrder, error) {
	var o model.MemberOrder
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.ProductID, &o.ProductName, &o.Amount, &o.Status, &o.PaymentParams, &o.TransactionID, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a PENDING row. The partial unique index on
// (user_id, product_id) WHERE status='PENDING' turns a concurrent duplicate
// into a reuse signal: the existing pending row is returned instead.
func (r *orderRepository) Create(ctx context.Context, order *model.MemberOrder) (*model.MemberOrder, bool, error) {
	const query = `INSERT INTO member_orders (order_no, user_id, product_id, product_name, amount, status)
                   VALUES ($1, $2, $3, $4, $5, $6)
                   ON CONFLICT (user_id, product_id) WHERE status = 'PENDING' DO NOTHING
                   RETURNING id, created_at`
	var created model.MemberOrder
	err := r.storage.pool.QueryRow(ctx, query,
		order.OrderNo, order.UserID, order.ProductID, order.ProductName, order.Amount, model.OrderStatusPending,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := r.FindPending(ctx, order.UserID, order.ProductID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	created.OrderNo = order.OrderNo
	created.UserID = order.UserID
	created.ProductID = order.ProductID
	created.ProductName = order.ProductName
	created.Amount = order.Amount
	created.Status = model.OrderStatusPending
	return &created, true, nil
}

func (r *orderRepository) GetByNo(ctx context.Context, orderNo string) (*model.MemberOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM member_orders WHERE order_no=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, orderNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.MemberOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM member_orders WHERE id=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) FindPending(ctx context.Context, userID int64, productID string) (*model.MemberOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM member_orders
                   WHERE user_id=$1 AND product_id=$2 AND status='PENDING'
                   ORDER BY id DESC LIMIT 1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, userID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) SetPaymentParams(ctx context.Context, orderID int64, params json.RawMessage) error {
	const query = `UPDATE member_orders SET payment_params=$1 WHERE id=$2`
	tag, err := r.storage.pool.Exec(ctx, query, params, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) MarkFailed(ctx context.Context, orderID int64) error {
	const query = `UPDATE member_orders SET status='FAILED' WHERE id=$1 AND status='PENDING'`
	_, err := r.storage.pool.Exec(ctx, query, orderID)
	return err
}

// Settle flips the order to SUCCESS and extends the owner's membership inside
// one transaction. The conditional UPDATE is the idempotency guard: when the
// order is already settled no row is affected and the membership is left
// untouched, whichever delivery or process got there first.
func (r *orderRepository) Settle(ctx context.Context, orderNo, transactionID string, durationDays int) (bool, error) {
	settled := false
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const settleQuery = `UPDATE member_orders
                             SET status='SUCCESS', transaction_id=$2, paid_at=NOW()
                             WHERE order_no=$1 AND status <> 'SUCCESS'
                             RETURNING user_id`
		var userID int64
		err := tx.QueryRow(ctx, settleQuery, orderNo, transactionID).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				const statusQuery = `SELECT status FROM member_orders WHERE order_no=$1`
				var status model.OrderStatus
				if err := tx.QueryRow(ctx, statusQuery, orderNo).Scan(&status); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return domainErrors.ErrOrderNotFound
					}
					return err
				}
				// Already SUCCESS: the idempotent no-op path.
				return nil
			}
			return err
		}

		const extendQuery = `UPDATE users
                             SET member_expire_at = GREATEST(COALESCE(member_expire_at, NOW()), NOW()) + make_interval(days => $2)
                             WHERE id=$1`
		if _, err := tx.Exec(ctx, extendQuery, userID, durationDays); err != nil {
			return err
		}

		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

func (r *orderRepository) SelectStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.MemberOrder, error) {
	const query = `SELECT ` + orderColumns + ` FROM member_orders
                   WHERE status='PENDING' AND created_at < $1
                   ORDER BY created_at
                   LIMIT $2`
	rows, err := r.storage.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.MemberOrder
	for rows.Next() {
		var o model.MemberOrder
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.ProductID, &o.ProductName, &o.Amount, &o.Status, &o.PaymentParams, &o.TransactionID, &o.CreatedAt, &o.PaidAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}
