package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/grocer/internal/model"
)

// OrderTx is the set of statements checkout runs inside one transaction.
type OrderTx interface {
	// LockProducts takes row locks on the given products in ascending id
	// order and returns them. Missing products are absent from the map.
	LockProducts(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	CurrentPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
	InsertOrder(ctx context.Context, order *model.Order) error
	InsertItem(ctx context.Context, item *model.OrderItem) error
	// DecrementStock returns ErrStockConflict instead of going below zero.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

type OrderRepository interface {
	RunInTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgOrderTx{tx: tx})
	})
}

type pgOrderTx struct{ tx pgx.Tx }

func (t *pgOrderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	return out, nil
}

func (t *pgOrderTx) CurrentPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	if err := t.tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&price); err != nil {
		return decimal.Zero, fmt.Errorf("read price: %w", err)
	}
	return price, nil
}

func (t *pgOrderTx) InsertOrder(ctx context.Context, order *model.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, total, payment_method, shipping_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`,
		order.UserID, order.Status, order.Total, order.PaymentMethod, order.ShippingAddress,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *pgOrderTx) InsertItem(ctx context.Context, item *model.OrderItem) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, price)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.Price,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (t *pgOrderTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrStockConflict)
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	order := &model.Order{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, status, total, payment_method, shipping_address, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.UserID, &order.Status, &order.Total,
		&order.PaymentMethod, &order.ShippingAddress, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT oi.id, oi.product_id, oi.quantity, oi.price, p.name, p.image
		 FROM order_items oi JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1 ORDER BY oi.id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.Price,
			&item.ProductName, &item.ProductImage); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	order.ItemCount = len(order.Items)
	return order, nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.status, o.total, o.payment_method, o.shipping_address, o.created_at, COUNT(oi.id)
		 FROM orders o LEFT JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.user_id = $1
		 GROUP BY o.id
		 ORDER BY o.created_at DESC, o.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		o.UserID = userID
		if err := rows.Scan(&o.ID, &o.Status, &o.Total, &o.PaymentMethod,
			&o.ShippingAddress, &o.CreatedAt, &o.ItemCount); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
