package commerce

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "chatcart.db"))
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedProduct(t *testing.T, store *SQLiteStore, p Product) {
	t.Helper()

	if err := store.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("UpsertProduct %s error: %v", p.ID, err)
	}
}

func TestSQLiteProducts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	products, err := store.Products(ctx)
	if err != nil {
		t.Fatalf("Products error: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected empty catalog, got %d products", len(products))
	}

	seedProduct(t, store, Product{ID: "tea-250", Name: "Masala Chai 250g", Price: 149.50, Stock: 10})
	seedProduct(t, store, Product{ID: "mug-01", Name: "Ceramic Mug", Price: 99, Stock: 4})

	products, err = store.Products(ctx)
	if err != nil {
		t.Fatalf("Products error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("catalog size = %d, want 2", len(products))
	}
	if products[0].Name != "Ceramic Mug" {
		t.Fatalf("catalog not ordered by name: %+v", products)
	}

	product, ok, err := store.Product(ctx, "tea-250")
	if err != nil || !ok {
		t.Fatalf("Product = (%v, %v), want present", ok, err)
	}
	if product.Price != 149.50 || product.Stock != 10 {
		t.Fatalf("unexpected product: %+v", product)
	}

	if _, ok, _ := store.Product(ctx, "nope"); ok {
		t.Fatal("expected missing product")
	}

	// Upsert replaces price and stock for an existing id.
	seedProduct(t, store, Product{ID: "tea-250", Name: "Masala Chai 250g", Price: 159, Stock: 8})
	product, _, _ = store.Product(ctx, "tea-250")
	if product.Price != 159 || product.Stock != 8 {
		t.Fatalf("upsert did not replace: %+v", product)
	}
}

func TestSQLiteCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	seedProduct(t, store, Product{ID: "tea-250", Name: "Masala Chai 250g", Price: 149.50, Stock: 10})

	if err := store.AddToCart(ctx, "telegram:1", "tea-250", 1); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := store.AddToCart(ctx, "telegram:1", "tea-250", 2); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if err := store.AddToCart(ctx, "telegram:1", "tea-250", 0); err == nil {
		t.Fatal("expected error for zero quantity")
	}

	items, err := store.Cart(ctx, "telegram:1")
	if err != nil {
		t.Fatalf("Cart error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("cart lines = %d, want 1 merged line", len(items))
	}
	if items[0].Qty != 3 || items[0].Name != "Masala Chai 250g" || items[0].Price != 149.50 {
		t.Fatalf("unexpected cart line: %+v", items[0])
	}

	// Carts are keyed by conversation.
	other, _ := store.Cart(ctx, "telegram:2")
	if len(other) != 0 {
		t.Fatalf("expected empty cart for other conversation, got %+v", other)
	}

	if err := store.ClearCart(ctx, "telegram:1"); err != nil {
		t.Fatalf("ClearCart error: %v", err)
	}
	items, _ = store.Cart(ctx, "telegram:1")
	if len(items) != 0 {
		t.Fatal("expected cart cleared")
	}
}

func TestSQLiteOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	order := Order{
		ID:              "ORD-1A2B3C4D",
		ConversationKey: "telegram:1",
		CustomerName:    "Asha Rao",
		Address:         "14 MG Road, near Metro",
		City:            "Bengaluru",
		Pincode:         "560001",
		PaymentMethod:   PaymentCOD,
		Items:           []CartItem{{ProductID: "tea-250", Name: "Masala Chai 250g", Qty: 2, Price: 149.50}},
		Subtotal:        299,
		ShippingFee:     50,
		Total:           349,
		Status:          StatusConfirmed,
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	got, ok, err := store.Order(ctx, "ORD-1A2B3C4D")
	if err != nil || !ok {
		t.Fatalf("Order = (%v, %v), want present", ok, err)
	}
	if got.CustomerName != "Asha Rao" || got.Total != 349 || got.Status != StatusConfirmed {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Qty != 2 {
		t.Fatalf("items did not round-trip: %+v", got.Items)
	}
	if !got.CreatedAt.Equal(order.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, order.CreatedAt)
	}

	if _, ok, _ := store.Order(ctx, "ORD-FFFFFFFF"); ok {
		t.Fatal("expected missing order")
	}

	later := order
	later.ID = "ORD-9E8D7C6B"
	later.CreatedAt = order.CreatedAt.Add(time.Hour)
	if err := store.CreateOrder(ctx, later); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	latest, ok, err := store.LatestOrder(ctx, "telegram:1")
	if err != nil || !ok {
		t.Fatalf("LatestOrder = (%v, %v), want present", ok, err)
	}
	if latest.ID != "ORD-9E8D7C6B" {
		t.Fatalf("latest order = %s, want newest", latest.ID)
	}

	orders, err := store.ListOrders(ctx, 10)
	if err != nil {
		t.Fatalf("ListOrders error: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ORD-9E8D7C6B" {
		t.Fatalf("ListOrders = %+v, want newest first", orders)
	}
}

func TestSQLiteDecrementStock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	seedProduct(t, store, Product{ID: "mug-01", Name: "Ceramic Mug", Price: 99, Stock: 3})

	if err := store.DecrementStock(ctx, "mug-01", 2); err != nil {
		t.Fatalf("DecrementStock error: %v", err)
	}

	product, _, _ := store.Product(ctx, "mug-01")
	if product.Stock != 1 {
		t.Fatalf("stock = %d, want 1", product.Stock)
	}

	err := store.DecrementStock(ctx, "mug-01", 2)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Stock never goes negative, even on refusal.
	product, _, _ = store.Product(ctx, "mug-01")
	if product.Stock != 1 {
		t.Fatalf("stock = %d, want unchanged after refusal", product.Stock)
	}
}

func TestSQLitePincodeServiceability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	// An empty table means everywhere is serviceable.
	ok, err := store.PincodeServiceable(ctx, "560001")
	if err != nil || !ok {
		t.Fatalf("PincodeServiceable = (%v, %v), want open coverage", ok, err)
	}

	if err := store.AddServiceablePincode(ctx, "560001"); err != nil {
		t.Fatalf("AddServiceablePincode error: %v", err)
	}

	ok, _ = store.PincodeServiceable(ctx, "560001")
	if !ok {
		t.Fatal("expected listed pincode serviceable")
	}
	ok, _ = store.PincodeServiceable(ctx, "110001")
	if ok {
		t.Fatal("expected unlisted pincode refused once the table is populated")
	}
}
