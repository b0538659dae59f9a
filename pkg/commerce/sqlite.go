package commerce

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	price REAL NOT NULL,
	stock INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS carts (
	conversation_key TEXT NOT NULL,
	product_id       TEXT NOT NULL,
	qty              INTEGER NOT NULL,
	PRIMARY KEY (conversation_key, product_id)
);
CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	conversation_key TEXT NOT NULL,
	customer_name    TEXT NOT NULL,
	address          TEXT NOT NULL,
	city             TEXT NOT NULL,
	pincode          TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	items            TEXT NOT NULL,
	subtotal         REAL NOT NULL,
	shipping_fee     REAL NOT NULL,
	payment_fee      REAL NOT NULL,
	total            REAL NOT NULL,
	status           TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_conversation ON orders (conversation_key, created_at);
CREATE TABLE IF NOT EXISTS serviceable_pincodes (
	code TEXT PRIMARY KEY
);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite tolerates exactly one writer; the engine's per-conversation
	// serialization keeps write contention low, but the pool is capped
	// to avoid SQLITE_BUSY under concurrent conversations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Products returns the catalog ordered by name.
func (s *SQLiteStore) Products(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, stock FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// Product returns one catalog entry by id.
func (s *SQLiteStore) Product(ctx context.Context, id string) (Product, bool, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `SELECT id, name, price, stock FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, fmt.Errorf("query product %s: %w", id, err)
	}

	return p, true, nil
}

// UpsertProduct creates or replaces a catalog entry. Used by seeding
// and operator tooling.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, stock) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price, stock = excluded.stock`,
		p.ID, p.Name, p.Price, p.Stock)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}

	return nil
}

// AddToCart adds quantity of a product to a conversation's cart.
func (s *SQLiteStore) AddToCart(ctx context.Context, conversationKey string, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid cart quantity %d", qty)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO carts (conversation_key, product_id, qty) VALUES (?, ?, ?)
		 ON CONFLICT(conversation_key, product_id) DO UPDATE SET qty = qty + excluded.qty`,
		conversationKey, productID, qty)
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	return nil
}

// Cart returns the cart lines for a conversation, joined with catalog
// names and prices.
func (s *SQLiteStore) Cart(ctx context.Context, conversationKey string) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.product_id, p.name, c.qty, p.price
		 FROM carts c JOIN products p ON p.id = c.product_id
		 WHERE c.conversation_key = ?
		 ORDER BY p.name`, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Qty, &item.Price); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ClearCart removes every cart line for a conversation.
func (s *SQLiteStore) ClearCart(ctx context.Context, conversationKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE conversation_key = ?`, conversationKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return nil
}

// CreateOrder inserts one order row.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders
		 (id, conversation_key, customer_name, address, city, pincode, payment_method, items,
		  subtotal, shipping_fee, payment_fee, total, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.ConversationKey, order.CustomerName, order.Address, order.City, order.Pincode,
		order.PaymentMethod, string(items), order.Subtotal, order.ShippingFee, order.PaymentFee, order.Total,
		order.Status, order.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	return nil
}

// Order returns one order by id.
func (s *SQLiteStore) Order(ctx context.Context, id string) (Order, bool, error) {
	row := s.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id)
	return scanOrder(row)
}

// LatestOrder returns the most recent order for a conversation.
func (s *SQLiteStore) LatestOrder(ctx context.Context, conversationKey string) (Order, bool, error) {
	row := s.db.QueryRowContext(ctx, selectOrder+` WHERE conversation_key = ? ORDER BY created_at DESC LIMIT 1`, conversationKey)
	return scanOrder(row)
}

// ListOrders returns the most recent orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectOrder+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, ok, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			orders = append(orders, order)
		}
	}

	return orders, rows.Err()
}

// DecrementStock reduces product stock, refusing to go negative.
func (s *SQLiteStore) DecrementStock(ctx context.Context, productID string, qty int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", productID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}

	return nil
}

// PincodeServiceable reports delivery coverage for a pincode. An empty
// serviceability table means every pincode is covered.
func (s *SQLiteStore) PincodeServiceable(ctx context.Context, pincode string) (bool, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM serviceable_pincodes`).Scan(&total); err != nil {
		return false, fmt.Errorf("count serviceable pincodes: %w", err)
	}
	if total == 0 {
		return true, nil
	}

	var matches int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM serviceable_pincodes WHERE code = ?`, pincode).Scan(&matches); err != nil {
		return false, fmt.Errorf("lookup pincode %s: %w", pincode, err)
	}

	return matches > 0, nil
}

// AddServiceablePincode marks one pincode as deliverable.
func (s *SQLiteStore) AddServiceablePincode(ctx context.Context, pincode string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO serviceable_pincodes (code) VALUES (?)`, pincode); err != nil {
		return fmt.Errorf("add serviceable pincode %s: %w", pincode, err)
	}

	return nil
}

const selectOrder = `SELECT id, conversation_key, customer_name, address, city, pincode, payment_method, items,
	subtotal, shipping_fee, payment_fee, total, status, created_at FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, bool, error) {
	var (
		order     Order
		itemsJSON string
		createdAt string
	)

	err := row.Scan(&order.ID, &order.ConversationKey, &order.CustomerName, &order.Address, &order.City,
		&order.Pincode, &order.PaymentMethod, &itemsJSON, &order.Subtotal, &order.ShippingFee,
		&order.PaymentFee, &order.Total, &order.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal([]byte(itemsJSON), &order.Items); err != nil {
		return Order{}, false, fmt.Errorf("decode order items: %w", err)
	}

	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		order.CreatedAt = parsed
	}

	return order, true, nil
}
