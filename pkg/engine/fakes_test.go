package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chatcart/pkg/channel"
	"chatcart/pkg/commerce"
)

// sentMessage records one outbound send for assertions.
type sentMessage struct {
	kind     string
	key      string
	text     string
	buttons  []channel.Button
	sections []channel.ListSection
	footer   string
}

// recordingSender implements channel.Sender in memory. An optional
// delay simulates a slow transport; an optional error fails every send.
type recordingSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	next  int
	delay time.Duration
	err   error
}

func (s *recordingSender) record(message sentMessage) (string, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}

	s.sent = append(s.sent, message)
	s.next++
	return fmt.Sprintf("delivery-%d", s.next), nil
}

func (s *recordingSender) SendText(_ context.Context, key string, text string) (string, error) {
	return s.record(sentMessage{kind: "text", key: key, text: text})
}

func (s *recordingSender) SendButtons(_ context.Context, key string, body string, buttons []channel.Button, footer string) (string, error) {
	return s.record(sentMessage{kind: "buttons", key: key, text: body, buttons: buttons, footer: footer})
}

func (s *recordingSender) SendList(_ context.Context, key string, body string, _ string, sections []channel.ListSection) (string, error) {
	return s.record(sentMessage{kind: "list", key: key, text: body, sections: sections})
}

func (s *recordingSender) SendTemplate(_ context.Context, key string, name string, _ []string, _ string) (string, error) {
	return s.record(sentMessage{kind: "template", key: key, text: name})
}

func (s *recordingSender) snapshot() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *recordingSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// memShop implements commerce.Store in memory for engine tests.
type memShop struct {
	mu       sync.Mutex
	products map[string]commerce.Product
	carts    map[string]map[string]int
	orders   []commerce.Order
	pincodes map[string]struct{}

	cartErr  error
	orderErr error
}

func newMemShop() *memShop {
	return &memShop{
		products: make(map[string]commerce.Product),
		carts:    make(map[string]map[string]int),
		pincodes: make(map[string]struct{}),
	}
}

func (s *memShop) addProduct(p commerce.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memShop) Products(context.Context) ([]commerce.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]commerce.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *memShop) Product(_ context.Context, id string) (commerce.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	return p, ok, nil
}

func (s *memShop) AddToCart(_ context.Context, conversationKey string, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[conversationKey]
	if !ok {
		cart = make(map[string]int)
		s.carts[conversationKey] = cart
	}
	cart[productID] += qty
	return nil
}

func (s *memShop) Cart(_ context.Context, conversationKey string) ([]commerce.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cartErr != nil {
		return nil, s.cartErr
	}

	var items []commerce.CartItem
	for productID, qty := range s.carts[conversationKey] {
		p := s.products[productID]
		items = append(items, commerce.CartItem{ProductID: productID, Name: p.Name, Qty: qty, Price: p.Price})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *memShop) ClearCart(_ context.Context, conversationKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, conversationKey)
	return nil
}

func (s *memShop) CreateOrder(_ context.Context, order commerce.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderErr != nil {
		return s.orderErr
	}
	s.orders = append(s.orders, order)
	return nil
}

func (s *memShop) Order(_ context.Context, id string) (commerce.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.ID == id {
			return order, true, nil
		}
	}
	return commerce.Order{}, false, nil
}

func (s *memShop) LatestOrder(_ context.Context, conversationKey string) (commerce.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].ConversationKey == conversationKey {
			return s.orders[i], true, nil
		}
	}
	return commerce.Order{}, false, nil
}

func (s *memShop) ListOrders(_ context.Context, limit int) ([]commerce.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]commerce.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0 && len(orders) < limit; i-- {
		orders = append(orders, s.orders[i])
	}
	return orders, nil
}

func (s *memShop) DecrementStock(_ context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.Stock < qty {
		return fmt.Errorf("product %s: %w", productID, commerce.ErrInsufficientStock)
	}
	p.Stock -= qty
	s.products[productID] = p
	return nil
}

func (s *memShop) PincodeServiceable(_ context.Context, pincode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pincodes) == 0 {
		return true, nil
	}
	_, ok := s.pincodes[pincode]
	return ok, nil
}

func (s *memShop) allowPincode(pincode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pincodes[pincode] = struct{}{}
}

func (s *memShop) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memShop) stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

func (s *memShop) cartSize(conversationKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts[conversationKey])
}
