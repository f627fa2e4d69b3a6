package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-storefront-api/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type OrderRepository interface {
	Place(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, note string) error
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgOrderRepo struct {
	pool        *pgxpool.Pool
	productRepo ProductRepository
}

func NewOrderRepository(pool *pgxpool.Pool, productRepo ProductRepository) OrderRepository {
	return &pgOrderRepo{pool: pool, productRepo: productRepo}
}

// Place persists the order, its line items and the opening status-history
// entry, and decrements stock for every line, all in one transaction. Any
// line that cannot be covered aborts the whole placement, so stock is
// all-or-nothing. The display number comes from a dedicated sequence, which
// keeps it unique under concurrent placements.
func (r *pgOrderRepo) Place(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_numbers')`).Scan(&seq); err != nil {
		return fmt.Errorf("next order number: %w", err)
	}
	order.ID = uuid.New()
	order.OrderNumber = fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), seq)
	order.Status = model.OrderStatusPending

	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billing, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, shipping_address, billing_address,
			payment_method, payment_transaction_id, payment_status,
			items_price, tax_price, shipping_price, total_price, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID, shipping, billing,
		order.Payment.Method, order.Payment.TransactionID, order.Payment.Status,
		order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		item := order.Items[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, price, quantity, image_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.OrderID, item.ProductID, item.Name, item.Price, item.Quantity, item.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		if err = r.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, changed_at)
		 VALUES ($1, $2, '', NOW())`,
		order.ID, order.Status,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateStatus moves the order forward through its lifecycle. The current
// status is read under a row lock so concurrent transitions serialize;
// delivered_at/cancelled_at are stamped on first entry only. A transition
// into cancelled restores every line's stock in the same transaction, so a
// crash between the two can never strand inventory.
func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current model.OrderStatus
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("lock order: %w", err)
	}
	if !current.CanTransitionTo(status) {
		return fmt.Errorf("%s -> %s: %w", current, status, ErrInvalidTransition)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2,
			delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN NOW() ELSE delivered_at END,
			cancelled_at = CASE WHEN $2 = 'cancelled' AND cancelled_at IS NULL THEN NOW() ELSE cancelled_at END,
			updated_at = NOW()
		 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, changed_at) VALUES ($1, $2, $3, NOW())`,
		id, status, note,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if status == model.OrderStatusCancelled {
		if err := r.restoreItems(ctx, tx, id); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *pgOrderRepo) restoreItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	type line struct {
		productID uuid.UUID
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()

	for _, l := range lines {
		if err := r.productRepo.RestoreStock(ctx, tx, l.productID, l.quantity); err != nil {
			return err
		}
	}
	return nil
}

// MarkPaid completes the payment exactly once: the guard on payment_status
// means a retried confirmation cannot double-complete or overwrite the
// recorded transaction id.
func (r *pgOrderRepo) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2,
			payment_transaction_id = CASE WHEN $3 <> '' THEN $3 ELSE payment_transaction_id END,
			paid_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND payment_status = $4`,
		id, model.PaymentStatusCompleted, transactionID, model.PaymentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the order; items and history go with it via cascade. The
// display number is never reissued because the sequence only moves forward.
func (r *pgOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const orderColumns = `id, order_number, user_id, shipping_address, billing_address,
	payment_method, payment_transaction_id, payment_status, paid_at,
	items_price, tax_price, shipping_price, total_price, status,
	delivered_at, cancelled_at, created_at, updated_at`

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := r.scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil || order == nil {
		return order, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, name, price, quantity, image_url FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}

	histRows, err := r.pool.Query(ctx,
		`SELECT status, note, changed_at FROM order_status_history WHERE order_id = $1 ORDER BY changed_at`, id)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var ch model.StatusChange
		if err := histRows.Scan(&ch.Status, &ch.Note, &ch.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		order.StatusHistory = append(order.StatusHistory, ch)
	}

	return order, nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	// Attach line items in one pass.
	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}
	itemRows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, name, price, quantity, image_url
		 FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item model.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name,
			&item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return orders, nil
}

func (r *pgOrderRepo) scanOrder(row pgx.Row) (*model.Order, error) {
	order := &model.Order{}
	var shipping, billing []byte
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &shipping, &billing,
		&order.Payment.Method, &order.Payment.TransactionID, &order.Payment.Status, &order.PaidAt,
		&order.ItemsPrice, &order.TaxPrice, &order.ShippingPrice, &order.TotalPrice,
		&order.Status, &order.DeliveredAt, &order.CancelledAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return order, nil
}
