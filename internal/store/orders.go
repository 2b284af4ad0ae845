package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Order statuses.
const (
	OrderPending   = "pending"
	OrderAccepted  = "accepted"
	OrderDeclined  = "declined"
	OrderCancelled = "cancelled"
)

// ErrOrderNotPending is returned when accept/decline hits an order that has
// already been settled.
var ErrOrderNotPending = errors.New("store: order is not pending")

// Order is a buyer's request for a listing. TotalPrice is captured at order
// time so later price edits don't change history.
type Order struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice int       `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderListItem joins an order with product and counterparty names.
type OrderListItem struct {
	Order
	ProductName string  `json:"product_name"`
	BuyerName   *string `json:"buyer_name,omitempty"`
	SellerName  *string `json:"seller_name,omitempty"`
}

const orderColumns = `id, product_id, buyer_id, seller_id, quantity, total_price, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID, &o.Quantity,
		&o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder places a pending order for a product. The seller and total
// price are derived from the listing inside the statement.
func (s *Store) CreateOrder(ctx context.Context, productID, buyerID string, quantity int) (*Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `
		INSERT INTO orders (product_id, buyer_id, seller_id, quantity, total_price, status)
		SELECT p.id, $2, p.seller_id, $3, p.price * $3, 'pending'
		FROM products p
		WHERE p.id = $1 AND p.status = 'active'
		RETURNING `+orderColumns+`
	`, productID, buyerID, quantity))
}

// GetOrder retrieves one order.
func (s *Store) GetOrder(ctx context.Context, id string) (*Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1
	`, id))
}

// ListOrdersForSeller returns orders on the seller's listings, newest first.
func (s *Store) ListOrdersForSeller(ctx context.Context, sellerID string, limit int) ([]OrderListItem, error) {
	return s.listOrders(ctx, `o.seller_id = $1`, sellerID, limit)
}

// ListOrdersForBuyer returns the buyer's own orders, newest first.
func (s *Store) ListOrdersForBuyer(ctx context.Context, buyerID string, limit int) ([]OrderListItem, error) {
	return s.listOrders(ctx, `o.buyer_id = $1`, buyerID, limit)
}

func (s *Store) listOrders(ctx context.Context, where, party string, limit int) ([]OrderListItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.id, o.product_id, o.buyer_id, o.seller_id, o.quantity, o.total_price, o.status,
		       o.created_at, o.updated_at,
		       p.name, b.name, sl.name
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN users b ON b.id = o.buyer_id
		JOIN users sl ON sl.id = o.seller_id
		WHERE `+where+`
		ORDER BY o.created_at DESC
		LIMIT $2
	`, party, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderListItem{}
	for rows.Next() {
		var item OrderListItem
		err := rows.Scan(
			&item.ID, &item.ProductID, &item.BuyerID, &item.SellerID, &item.Quantity,
			&item.TotalPrice, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&item.ProductName, &item.BuyerName, &item.SellerName,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SettleOrder moves a pending order to accepted or declined. Only the
// listing's seller may settle it; a non-pending order is left untouched.
func (s *Store) SettleOrder(ctx context.Context, orderID, sellerID, status string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2 AND status = 'pending'
		RETURNING `+orderColumns+`
	`, orderID, sellerID, status))
	if err == pgx.ErrNoRows {
		return nil, ErrOrderNotPending
	}
	return o, err
}

// CancelOrder lets the buyer withdraw a pending order.
func (s *Store) CancelOrder(ctx context.Context, orderID, buyerID string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND buyer_id = $2 AND status = 'pending'
	`, orderID, buyerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotPending
	}
	return nil
}
