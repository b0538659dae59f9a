package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatcart/pkg/channel"
	"chatcart/pkg/commerce"
	"chatcart/pkg/store"
)

// FlowOrder is the order-placement dialogue.
const FlowOrder = "order"

// Persisted order-flow steps. Each names the input the flow is waiting
// for; terminal processing happens inside the payment step and deletes
// the state instead of advancing.
const (
	StepReceiveName    = "receive_name"
	StepReceiveAddress = "receive_address"
	StepReceiveCity    = "receive_city"
	StepReceivePincode = "receive_pincode"
	StepConfirmAddress = "confirm_address"
	StepSelectPayment  = "select_payment"
)

// Payment button payloads, consumed by the flow rather than the router.
const (
	ButtonAddrConfirm = "addr_confirm"
	ButtonAddrEdit    = "addr_edit"
	ButtonPayCOD      = "pay_cod"
	ButtonPayOnline   = "pay_online"
)

const cancelKeyword = "cancel"

const minAddressLen = 10

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// OrderFlowData is the typed payload of the order flow. It is JSON at
// the store boundary and merged field-by-field on every transition.
type OrderFlowData struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// Reply is one outbound response the executor should deliver.
type Reply struct {
	Text       string
	Buttons    []channel.Button
	Sections   []channel.ListSection
	ListButton string
	Footer     string
}

// Effect is the ordered response sequence produced by routing or a
// flow transition.
type Effect struct {
	Replies []Reply
}

func textReply(text string) Reply {
	return Reply{Text: text}
}

// FlowMachine persists and advances multi-step dialogues per
// conversation key.
//
// It holds no internal per-key locking: the conversation queue
// serializes every call for a key, and the whole engine depends on
// that guarantee.
type FlowMachine struct {
	flows     store.FlowStore
	shop      commerce.Store
	pricing   commerce.Pricing
	ttl       time.Duration
	log       *slog.Logger
	telemetry Telemetry

	now        func() time.Time
	newOrderID func() string
}

// NewFlowMachine builds the dialogue state machine.
func NewFlowMachine(flows store.FlowStore, shop commerce.Store, pricing commerce.Pricing, ttl time.Duration, log *slog.Logger, telemetry Telemetry) *FlowMachine {
	if log == nil {
		log = slog.Default()
	}
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}

	return &FlowMachine{
		flows:      flows,
		shop:       shop,
		pricing:    pricing,
		ttl:        ttl,
		log:        log.With("component", "engine.flow"),
		telemetry:  telemetry,
		now:        time.Now,
		newOrderID: newOrderID,
	}
}

// SetClock overrides the time source. Test helper.
func (m *FlowMachine) SetClock(now func() time.Time) {
	m.now = now
}

// newOrderID derives a short quotable order reference from a UUIDv7.
func newOrderID() string {
	raw := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:8])
}

// Status reports whether a live flow exists for the key. A state past
// its expiry is deleted and reported as expired so the caller can tell
// the counterpart before routing the message normally.
func (m *FlowMachine) Status(ctx context.Context, conversationKey string) (active bool, expired bool, err error) {
	state, ok, err := m.flows.Get(ctx, conversationKey)
	if err != nil {
		return false, false, err
	}
	if !ok {
		return false, false, nil
	}

	if state.Expired(m.now()) {
		if err := m.flows.Delete(ctx, conversationKey); err != nil {
			return false, false, err
		}
		return false, true, nil
	}

	return true, false, nil
}

// Start enters the order flow for a key. With an empty cart no state
// is created; the reply redirects to the catalog instead.
func (m *FlowMachine) Start(ctx context.Context, conversationKey string) (Effect, error) {
	items, err := m.shop.Cart(ctx, conversationKey)
	if err != nil {
		return Effect{}, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return Effect{Replies: []Reply{{
			Text:    msgCartEmpty,
			Buttons: []channel.Button{{ID: ButtonCatalog, Label: labelCatalog}},
		}}}, nil
	}

	now := m.now()
	state := store.FlowState{
		ConversationKey: conversationKey,
		FlowName:        FlowOrder,
		Step:            StepReceiveName,
		Data:            json.RawMessage("{}"),
		StartedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(m.ttl),
	}
	if err := m.flows.Upsert(ctx, state); err != nil {
		return Effect{}, fmt.Errorf("persist flow state: %w", err)
	}

	m.telemetry.FlowAdvanced(FlowOrder, StepReceiveName)
	return Effect{Replies: []Reply{textReply(msgCheckoutIntro), textReply(msgAskName)}}, nil
}

// Cancel abandons the flow, leaving the cart untouched.
func (m *FlowMachine) Cancel(ctx context.Context, conversationKey string) (Effect, error) {
	if err := m.flows.Delete(ctx, conversationKey); err != nil {
		return Effect{}, fmt.Errorf("delete flow state: %w", err)
	}

	return Effect{Replies: []Reply{{
		Text:    msgFlowCanceled,
		Buttons: menuButtons(),
	}}}, nil
}

// Advance feeds one input into the active flow.
//
// Validation failure re-prompts without moving the step. A missing or
// expired state restarts the flow from its first step, telling the
// counterpart their session lapsed. Terminal steps place the order and
// delete the state before returning.
func (m *FlowMachine) Advance(ctx context.Context, conversationKey string, input string) (Effect, error) {
	state, ok, err := m.flows.Get(ctx, conversationKey)
	if err != nil {
		return Effect{}, fmt.Errorf("read flow state: %w", err)
	}
	if !ok || state.Expired(m.now()) {
		if ok {
			if err := m.flows.Delete(ctx, conversationKey); err != nil {
				return Effect{}, fmt.Errorf("delete expired flow state: %w", err)
			}
		}

		effect, err := m.Start(ctx, conversationKey)
		if err != nil {
			return Effect{}, err
		}
		effect.Replies = append([]Reply{textReply(msgFlowExpired)}, effect.Replies...)
		return effect, nil
	}

	trimmed := strings.TrimSpace(input)
	normalized := strings.ToLower(trimmed)
	if normalized == cancelKeyword {
		return m.Cancel(ctx, conversationKey)
	}

	var data OrderFlowData
	if len(state.Data) > 0 {
		if err := json.Unmarshal(state.Data, &data); err != nil {
			return Effect{}, fmt.Errorf("decode flow data: %w", err)
		}
	}

	var (
		effect   Effect
		nextStep = state.Step
		terminal bool
	)

	switch state.Step {
	case StepReceiveName:
		if len([]rune(trimmed)) < 2 {
			effect = Effect{Replies: []Reply{textReply(msgNameInvalid)}}
			break
		}
		data.Name = trimmed
		nextStep = StepReceiveAddress
		effect = Effect{Replies: []Reply{textReply(msgAskAddress)}}

	case StepReceiveAddress:
		if len([]rune(trimmed)) < minAddressLen {
			effect = Effect{Replies: []Reply{textReply(msgAddressInvalid)}}
			break
		}
		data.Address = trimmed
		nextStep = StepReceiveCity
		effect = Effect{Replies: []Reply{textReply(msgAskCity)}}

	case StepReceiveCity:
		if len([]rune(trimmed)) < 2 {
			effect = Effect{Replies: []Reply{textReply(msgCityInvalid)}}
			break
		}
		data.City = trimmed
		nextStep = StepReceivePincode
		effect = Effect{Replies: []Reply{textReply(msgAskPincode)}}

	case StepReceivePincode:
		if !pincodePattern.MatchString(trimmed) {
			effect = Effect{Replies: []Reply{textReply(msgPincodeInvalid)}}
			break
		}
		serviceable, err := m.shop.PincodeServiceable(ctx, trimmed)
		if err != nil {
			return Effect{}, fmt.Errorf("pincode lookup: %w", err)
		}
		if !serviceable {
			effect = Effect{Replies: []Reply{textReply(msgPincodeNotServed)}}
			break
		}
		data.Pincode = trimmed
		nextStep = StepConfirmAddress
		effect = Effect{Replies: []Reply{m.confirmPrompt(data)}}

	case StepConfirmAddress:
		switch normalized {
		case ButtonAddrConfirm, "yes", "confirm", "ok":
			nextStep = StepSelectPayment
			reply, err := m.paymentPrompt(ctx, conversationKey)
			if err != nil {
				return Effect{}, err
			}
			effect = Effect{Replies: []Reply{reply}}
		case ButtonAddrEdit, "no", "edit":
			nextStep = StepReceiveName
			effect = Effect{Replies: []Reply{textReply(msgAddressEdit), textReply(msgAskName)}}
		default:
			effect = Effect{Replies: []Reply{m.confirmPrompt(data), textReply(msgConfirmRetry)}}
		}

	case StepSelectPayment:
		switch normalized {
		case ButtonPayCOD, "cod", "cash", "cash on delivery":
			effect, terminal, err = m.placeOrder(ctx, conversationKey, data, commerce.PaymentCOD)
		case ButtonPayOnline, "online", "pay online", "upi", "card":
			effect, terminal, err = m.placeOrder(ctx, conversationKey, data, commerce.PaymentOnline)
		default:
			reply, perr := m.paymentPrompt(ctx, conversationKey)
			if perr != nil {
				return Effect{}, perr
			}
			effect = Effect{Replies: []Reply{textReply(msgPaymentRetry), reply}}
		}
		if err != nil {
			return Effect{}, err
		}

	default:
		return Effect{}, fmt.Errorf("unknown flow step %q", state.Step)
	}

	if terminal {
		return effect, nil
	}

	merged, err := json.Marshal(data)
	if err != nil {
		return Effect{}, fmt.Errorf("encode flow data: %w", err)
	}

	now := m.now()
	state.Data = merged
	state.Step = nextStep
	state.UpdatedAt = now
	state.ExpiresAt = now.Add(m.ttl)
	if err := m.flows.Upsert(ctx, state); err != nil {
		return Effect{}, fmt.Errorf("persist flow state: %w", err)
	}

	m.telemetry.FlowAdvanced(FlowOrder, nextStep)
	return effect, nil
}

// confirmPrompt renders the collected address with confirm/edit buttons.
func (m *FlowMachine) confirmPrompt(data OrderFlowData) Reply {
	body := fmt.Sprintf("Please confirm the delivery details:\n\n%s\n%s\n%s — %s", data.Name, data.Address, data.City, data.Pincode)
	return Reply{
		Text: body,
		Buttons: []channel.Button{
			{ID: ButtonAddrConfirm, Label: labelConfirm},
			{ID: ButtonAddrEdit, Label: labelEdit},
		},
	}
}

// paymentPrompt summarizes the charge and offers payment methods.
func (m *FlowMachine) paymentPrompt(ctx context.Context, conversationKey string) (Reply, error) {
	items, err := m.shop.Cart(ctx, conversationKey)
	if err != nil {
		return Reply{}, fmt.Errorf("read cart: %w", err)
	}

	subtotal := commerce.Subtotal(items)
	shipping := m.pricing.Shipping(subtotal)

	body := fmt.Sprintf("Subtotal: %s %.2f\nShipping: %s %.2f\nTotal: %s %.2f\n\nHow would you like to pay?",
		m.pricing.Currency(), subtotal, m.pricing.Currency(), shipping, m.pricing.Currency(), subtotal+shipping)
	if shipping == 0 {
		body = fmt.Sprintf("Subtotal: %s %.2f\nShipping: free\nTotal: %s %.2f\n\nHow would you like to pay?",
			m.pricing.Currency(), subtotal, m.pricing.Currency(), subtotal)
	}

	return Reply{
		Text: body,
		Buttons: []channel.Button{
			{ID: ButtonPayCOD, Label: labelCOD},
			{ID: ButtonPayOnline, Label: labelOnline},
		},
	}, nil
}

// placeOrder runs the terminal step: persist the order, decrement
// inventory, clear the cart, and delete the flow state, in that order.
// A COD total above the ceiling re-prompts payment selection instead.
//
// Failures after the order row is committed are logged for manual
// reconciliation rather than retried or rolled back; retrying risks a
// duplicate order and the confirmed row is the customer's source of truth.
func (m *FlowMachine) placeOrder(ctx context.Context, conversationKey string, data OrderFlowData, method string) (Effect, bool, error) {
	items, err := m.shop.Cart(ctx, conversationKey)
	if err != nil {
		return Effect{}, false, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		if err := m.flows.Delete(ctx, conversationKey); err != nil {
			return Effect{}, false, fmt.Errorf("delete flow state: %w", err)
		}
		return Effect{Replies: []Reply{{Text: msgCartEmpty, Buttons: []channel.Button{{ID: ButtonCatalog, Label: labelCatalog}}}}}, true, nil
	}

	subtotal := commerce.Subtotal(items)
	shipping := m.pricing.Shipping(subtotal)
	total := subtotal + shipping

	var fee float64
	status := commerce.StatusConfirmed
	if method == commerce.PaymentCOD {
		if !m.pricing.CODAllowed(total) {
			prompt, perr := m.paymentPrompt(ctx, conversationKey)
			if perr != nil {
				return Effect{}, false, perr
			}
			explain := fmt.Sprintf("Cash on delivery is available up to %s %.2f. Your order is %s %.2f — please pay online instead.",
				m.pricing.Currency(), m.pricing.CODMax(), m.pricing.Currency(), total)
			return Effect{Replies: []Reply{textReply(explain), prompt}}, false, nil
		}
	} else {
		fee = m.pricing.OnlineFee(total)
		total += fee
		status = commerce.StatusAwaitingOnline
	}

	order := commerce.Order{
		ID:              m.newOrderID(),
		ConversationKey: conversationKey,
		CustomerName:    data.Name,
		Address:         data.Address,
		City:            data.City,
		Pincode:         data.Pincode,
		PaymentMethod:   method,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		PaymentFee:      fee,
		Total:           total,
		Status:          status,
		CreatedAt:       m.now(),
	}

	if err := m.shop.CreateOrder(ctx, order); err != nil {
		return Effect{}, false, fmt.Errorf("create order: %w", err)
	}

	for _, item := range items {
		if err := m.shop.DecrementStock(ctx, item.ProductID, item.Qty); err != nil {
			m.log.Error("Inventory decrement failed after order commit; needs reconciliation",
				"order_id", order.ID, "product_id", item.ProductID, "qty", item.Qty, "error", err)
		}
	}

	if err := m.shop.ClearCart(ctx, conversationKey); err != nil {
		m.log.Error("Cart clearance failed after order commit; needs reconciliation",
			"order_id", order.ID, "conversation_key", conversationKey, "error", err)
	}

	if err := m.flows.Delete(ctx, conversationKey); err != nil {
		m.log.Error("Flow state delete failed after order commit; needs reconciliation",
			"order_id", order.ID, "conversation_key", conversationKey, "error", err)
	}

	m.telemetry.OrderPlaced(order.Total)

	confirm := fmt.Sprintf("Order %s confirmed! Total: %s %.2f. We'll keep you posted — reply with %s anytime for status.",
		order.ID, m.pricing.Currency(), order.Total, order.ID)
	replies := []Reply{textReply(confirm)}
	if method == commerce.PaymentOnline {
		replies = append(replies, textReply(msgOnlineNext))
	}

	return Effect{Replies: replies}, true, nil
}

func menuButtons() []channel.Button {
	return []channel.Button{
		{ID: ButtonCatalog, Label: labelCatalog},
		{ID: ButtonCart, Label: labelCart},
		{ID: ButtonHelp, Label: labelHelp},
	}
}
