package commerce

import (
	"testing"

	"chatcart/pkg/config"
)

func TestSubtotal(t *testing.T) {
	t.Parallel()

	if got := Subtotal(nil); got != 0 {
		t.Fatalf("Subtotal(nil) = %v, want 0", got)
	}

	items := []CartItem{
		{ProductID: "tea-250", Qty: 2, Price: 149.50},
		{ProductID: "mug-01", Qty: 1, Price: 99},
	}
	if got := Subtotal(items); got != 398 {
		t.Fatalf("Subtotal = %v, want 398", got)
	}
}

func TestPricingShipping(t *testing.T) {
	t.Parallel()

	pricing := NewPricing(config.CommerceConfig{FreeShippingMin: 500, ShippingFee: 50})

	if got := pricing.Shipping(499.99); got != 50 {
		t.Fatalf("Shipping(499.99) = %v, want 50", got)
	}
	if got := pricing.Shipping(500); got != 0 {
		t.Fatalf("Shipping(500) = %v, want free at threshold", got)
	}
	if got := pricing.Shipping(1200); got != 0 {
		t.Fatalf("Shipping(1200) = %v, want free", got)
	}
}

func TestPricingOnlineFee(t *testing.T) {
	t.Parallel()

	pricing := NewPricing(config.CommerceConfig{OnlineFeePct: 2})

	// 2% of 550 is 11; the fee rounds to the nearest paisa.
	if got := pricing.OnlineFee(550); got != 11 {
		t.Fatalf("OnlineFee(550) = %v, want 11", got)
	}
	if got := pricing.OnlineFee(333.33); got != 6.67 {
		t.Fatalf("OnlineFee(333.33) = %v, want 6.67", got)
	}
}

func TestPricingCODCeiling(t *testing.T) {
	t.Parallel()

	pricing := NewPricing(config.CommerceConfig{CODMax: 10000})

	if !pricing.CODAllowed(10000) {
		t.Fatal("expected COD allowed at the ceiling")
	}
	if pricing.CODAllowed(10000.01) {
		t.Fatal("expected COD refused above the ceiling")
	}
}

func TestPricingDefaults(t *testing.T) {
	t.Parallel()

	pricing := NewPricing(config.CommerceConfig{})

	if pricing.Currency() != config.DefaultCurrency {
		t.Fatalf("currency = %q, want default", pricing.Currency())
	}
	if pricing.CODMax() != config.DefaultCODMax {
		t.Fatalf("cod max = %v, want default", pricing.CODMax())
	}
}
