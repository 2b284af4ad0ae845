package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Product is a marketplace listing. Delivery holds option codes such as
// PICKUP, COURIER, LOCAL.
type Product struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       int       `json:"price"`
	Quantity    int       `json:"quantity"`
	Unit        string    `json:"unit"`
	Category    string    `json:"category"`
	Delivery    []string  `json:"delivery"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductListItem joins a product with its seller's public info.
type ProductListItem struct {
	Product
	SellerName  *string `json:"seller_name,omitempty"`
	SellerPhone string  `json:"seller_phone"`
	Village     *string `json:"village,omitempty"`
}

const productColumns = `id, seller_id, name, description, price, quantity, unit, category, delivery, photo_url, status, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Quantity,
		&p.Unit, &p.Category, &p.Delivery, &p.PhotoURL, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct inserts a new active listing and returns it.
func (s *Store) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `
		INSERT INTO products (seller_id, name, description, price, quantity, unit, category, delivery, photo_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
		RETURNING `+productColumns+`
	`, p.SellerID, p.Name, p.Description, p.Price, p.Quantity, p.Unit, p.Category, p.Delivery, p.PhotoURL))
}

// GetProduct retrieves one listing.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
}

// GetProductWithSeller retrieves a listing with seller contact info.
func (s *Store) GetProductWithSeller(ctx context.Context, id string) (*ProductListItem, error) {
	var item ProductListItem
	err := s.db.QueryRow(ctx, `
		SELECT p.id, p.seller_id, p.name, p.description, p.price, p.quantity, p.unit, p.category,
		       p.delivery, p.photo_url, p.status, p.created_at, p.updated_at,
		       u.name, u.phone, u.village
		FROM products p
		JOIN users u ON u.id = p.seller_id
		WHERE p.id = $1
	`, id).Scan(
		&item.ID, &item.SellerID, &item.Name, &item.Description, &item.Price, &item.Quantity,
		&item.Unit, &item.Category, &item.Delivery, &item.PhotoURL, &item.Status,
		&item.CreatedAt, &item.UpdatedAt,
		&item.SellerName, &item.SellerPhone, &item.Village,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListProducts returns the newest active listings, optionally filtered by
// category.
func (s *Store) ListProducts(ctx context.Context, category string, limit int) ([]ProductListItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.seller_id, p.name, p.description, p.price, p.quantity, p.unit, p.category,
		       p.delivery, p.photo_url, p.status, p.created_at, p.updated_at,
		       u.name, u.phone, u.village
		FROM products p
		JOIN users u ON u.id = p.seller_id
		WHERE p.status = 'active' AND ($1 = '' OR p.category = $1)
		ORDER BY p.created_at DESC
		LIMIT $2
	`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductListItems(rows)
}

// SearchProducts matches the query against listing names, descriptions, and
// categories.
func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]ProductListItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.seller_id, p.name, p.description, p.price, p.quantity, p.unit, p.category,
		       p.delivery, p.photo_url, p.status, p.created_at, p.updated_at,
		       u.name, u.phone, u.village
		FROM products p
		JOIN users u ON u.id = p.seller_id
		WHERE p.status = 'active'
		  AND (p.name ILIKE '%' || $1 || '%'
		       OR p.description ILIKE '%' || $1 || '%'
		       OR p.category ILIKE '%' || $1 || '%')
		ORDER BY p.created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductListItems(rows)
}

// ListProductsBySeller returns all of one seller's listings, newest first.
func (s *Store) ListProductsBySeller(ctx context.Context, sellerID string, limit int) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sellerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProductStatus sets a listing's status ('active', 'sold', 'removed').
// Only the owning seller may change it.
func (s *Store) UpdateProductStatus(ctx context.Context, id, sellerID, status string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE products
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanProductListItems(rows pgx.Rows) ([]ProductListItem, error) {
	out := []ProductListItem{}
	for rows.Next() {
		var item ProductListItem
		err := rows.Scan(
			&item.ID, &item.SellerID, &item.Name, &item.Description, &item.Price, &item.Quantity,
			&item.Unit, &item.Category, &item.Delivery, &item.PhotoURL, &item.Status,
			&item.CreatedAt, &item.UpdatedAt,
			&item.SellerName, &item.SellerPhone, &item.Village,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
