// Package commerce persists the business records the engine produces
// (orders, inventory movements, carts) and owns pricing policy.
package commerce

import (
	"context"
	"errors"
	"math"
	"time"

	"chatcart/pkg/config"
)

// ErrInsufficientStock is returned when an inventory decrement would
// take stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Payment method identifiers carried on orders.
const (
	PaymentCOD    = "cod"
	PaymentOnline = "online"
)

// Order statuses.
const (
	StatusConfirmed      = "confirmed"
	StatusAwaitingOnline = "awaiting_payment"
	StatusShipped        = "shipped"
	StatusDelivered      = "delivered"
)

// Product is one sellable catalog entry.
type Product struct {
	ID    string
	Name  string
	Price float64
	Stock int
}

// CartItem is one product line in a conversation's cart.
type CartItem struct {
	ProductID string
	Name      string
	Qty       int
	Price     float64
}

// Subtotal sums the cart line totals.
func Subtotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Qty)
	}

	return total
}

// Order is one placed order.
type Order struct {
	ID              string
	ConversationKey string
	CustomerName    string
	Address         string
	City            string
	Pincode         string
	PaymentMethod   string
	Items           []CartItem
	Subtotal        float64
	ShippingFee     float64
	PaymentFee      float64
	Total           float64
	Status          string
	CreatedAt       time.Time
}

// Store persists catalog, cart, order, and inventory records.
type Store interface {
	Products(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id string) (Product, bool, error)

	AddToCart(ctx context.Context, conversationKey string, productID string, qty int) error
	Cart(ctx context.Context, conversationKey string) ([]CartItem, error)
	ClearCart(ctx context.Context, conversationKey string) error

	CreateOrder(ctx context.Context, order Order) error
	Order(ctx context.Context, id string) (Order, bool, error)
	LatestOrder(ctx context.Context, conversationKey string) (Order, bool, error)
	ListOrders(ctx context.Context, limit int) ([]Order, error)

	// DecrementStock reduces product stock, failing with
	// ErrInsufficientStock rather than going negative.
	DecrementStock(ctx context.Context, productID string, qty int) error

	// PincodeServiceable reports whether delivery covers the pincode.
	// An empty serviceability table means every pincode is covered.
	PincodeServiceable(ctx context.Context, pincode string) (bool, error)
}

// Pricing applies the configured commerce policy.
type Pricing struct {
	cfg config.CommerceConfig
}

// NewPricing builds pricing with defaults applied.
func NewPricing(cfg config.CommerceConfig) Pricing {
	return Pricing{cfg: cfg.Policy()}
}

// Currency returns the display currency code.
func (p Pricing) Currency() string {
	return p.cfg.Currency
}

// Shipping returns the shipping fee for a subtotal. Orders at or above
// the free-shipping threshold ship free.
func (p Pricing) Shipping(subtotal float64) float64 {
	if subtotal >= p.cfg.FreeShippingMin {
		return 0
	}

	return p.cfg.ShippingFee
}

// OnlineFee returns the computed online-payment surcharge for an
// order value (gateway convenience fee, percentage of the amount).
func (p Pricing) OnlineFee(amount float64) float64 {
	return math.Round(amount*p.cfg.OnlineFeePct) / 100
}

// CODAllowed reports whether a cash-on-delivery order of the given
// value is accepted. Online payment has no ceiling.
func (p Pricing) CODAllowed(orderValue float64) bool {
	return orderValue <= p.cfg.CODMax
}

// CODMax returns the cash-on-delivery ceiling, for user-facing messages.
func (p Pricing) CODMax() float64 {
	return p.cfg.CODMax
}
