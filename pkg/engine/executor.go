package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatcart/pkg/channel"
	"chatcart/pkg/commerce"
)

// Executor performs the side effects of a routed action or flow
// effect: gateway sends and business-record writes. It is also the
// entry point for admin-synthesized actions, which skip dedup and
// queueing.
type Executor struct {
	sender    channel.Sender
	shop      commerce.Store
	pricing   commerce.Pricing
	flow      *FlowMachine
	translate Translator
	log       *slog.Logger
}

// NewExecutor wires the executor's collaborators. A nil translator
// gets the pass-through default.
func NewExecutor(sender channel.Sender, shop commerce.Store, pricing commerce.Pricing, flow *FlowMachine, translate Translator, log *slog.Logger) *Executor {
	if translate == nil {
		translate = NoopTranslator{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Executor{
		sender:    sender,
		shop:      shop,
		pricing:   pricing,
		flow:      flow,
		translate: translate,
		log:       log.With("component", "engine.executor"),
	}
}

// Execute dispatches one action. The switch is total over ActionKind;
// an unknown kind is an error, never a silent drop.
func (x *Executor) Execute(ctx context.Context, action RoutedAction) error {
	key := action.ConversationKey

	switch action.Kind {
	case ActionWelcome:
		return x.Deliver(ctx, key, action.Lang, Effect{Replies: []Reply{{
			Text:    msgWelcome,
			Buttons: menuButtons(),
			Footer:  msgMenuFooter,
		}}})

	case ActionMainMenu:
		return x.Deliver(ctx, key, action.Lang, Effect{Replies: []Reply{{
			Text:    msgMenu,
			Buttons: menuButtons(),
			Footer:  msgMenuFooter,
		}}})

	case ActionBrowseCatalog:
		return x.browseCatalog(ctx, action)

	case ActionAddToCart:
		return x.addToCart(ctx, action)

	case ActionViewCart:
		return x.viewCart(ctx, action)

	case ActionStartCheckout:
		effect, err := x.flow.Start(ctx, key)
		if err != nil {
			return err
		}
		return x.Deliver(ctx, key, action.Lang, effect)

	case ActionOrderStatus:
		return x.orderStatus(ctx, action)

	case ActionTrackOrder:
		return x.trackOrder(ctx, action)

	case ActionHelp:
		return x.Deliver(ctx, key, action.Lang, Effect{Replies: []Reply{textReply(msgHelp)}})

	case ActionHumanHandoff:
		x.log.Info("Human handoff requested", "conversation_key", key)
		return x.Deliver(ctx, key, action.Lang, Effect{Replies: []Reply{textReply(msgHumanHandoff)}})

	default:
		return fmt.Errorf("unhandled action kind %d", action.Kind)
	}
}

// Deliver sends every reply of an effect, in order, through the gateway.
func (x *Executor) Deliver(ctx context.Context, key string, lang string, effect Effect) error {
	for _, reply := range effect.Replies {
		text := x.translate.Translate(lang, reply.Text)

		var err error
		switch {
		case len(reply.Sections) > 0:
			_, err = x.sender.SendList(ctx, key, text, reply.ListButton, reply.Sections)
		case len(reply.Buttons) > 0:
			_, err = x.sender.SendButtons(ctx, key, text, reply.Buttons, x.translate.Translate(lang, reply.Footer))
		default:
			_, err = x.sender.SendText(ctx, key, text)
		}
		if err != nil {
			return fmt.Errorf("deliver reply: %w", err)
		}
	}

	return nil
}

func (x *Executor) browseCatalog(ctx context.Context, action RoutedAction) error {
	products, err := x.shop.Products(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if len(products) == 0 {
		return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(msgCatalogEmpty)}})
	}

	maxItems := channel.MaxListSections * channel.MaxListRows
	if len(products) > maxItems {
		products = products[:maxItems]
	}

	var sections []channel.ListSection
	for start := 0; start < len(products); start += channel.MaxListRows {
		end := min(start+channel.MaxListRows, len(products))

		rows := make([]channel.ListRow, 0, end-start)
		for _, p := range products[start:end] {
			description := fmt.Sprintf("%s %.2f", x.pricing.Currency(), p.Price)
			if p.Stock <= 0 {
				description += " (out of stock)"
			}
			rows = append(rows, channel.ListRow{
				ID:          addToCartPrefix + p.ID,
				Title:       p.Name,
				Description: description,
			})
		}
		sections = append(sections, channel.ListSection{Rows: rows})
	}

	return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{{
		Text:       msgCatalogBody,
		Sections:   sections,
		ListButton: msgCatalogButton,
	}}})
}

func (x *Executor) addToCart(ctx context.Context, action RoutedAction) error {
	product, ok, err := x.shop.Product(ctx, action.Arg)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if !ok || product.Stock <= 0 {
		return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(msgProductMissing)}})
	}

	if err := x.shop.AddToCart(ctx, action.ConversationKey, product.ID, 1); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	body := fmt.Sprintf("%s %s — %s %.2f", product.Name, msgAddedToCart, x.pricing.Currency(), product.Price)
	return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{{
		Text: body,
		Buttons: []channel.Button{
			{ID: ButtonCheckout, Label: labelCheckout},
			{ID: ButtonCart, Label: labelCart},
			{ID: ButtonCatalog, Label: labelCatalog},
		},
	}}})
}

func (x *Executor) viewCart(ctx context.Context, action RoutedAction) error {
	items, err := x.shop.Cart(ctx, action.ConversationKey)
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{{
			Text:    msgCartEmpty,
			Buttons: []channel.Button{{ID: ButtonCatalog, Label: labelCatalog}},
		}}})
	}

	var body strings.Builder
	body.WriteString("Your cart:\n")
	for _, item := range items {
		fmt.Fprintf(&body, "\n%d × %s — %s %.2f", item.Qty, item.Name, x.pricing.Currency(), item.Price*float64(item.Qty))
	}
	fmt.Fprintf(&body, "\n\nSubtotal: %s %.2f", x.pricing.Currency(), commerce.Subtotal(items))

	return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{{
		Text: body.String(),
		Buttons: []channel.Button{
			{ID: ButtonCheckout, Label: labelCheckout},
			{ID: ButtonCatalog, Label: labelCatalog},
		},
	}}})
}

func (x *Executor) orderStatus(ctx context.Context, action RoutedAction) error {
	order, ok, err := x.shop.Order(ctx, action.Arg)
	if err != nil {
		return fmt.Errorf("load order %s: %w", action.Arg, err)
	}
	if !ok {
		return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(msgOrderNotFound)}})
	}

	return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(orderSummary(order, x.pricing.Currency()))}})
}

func (x *Executor) trackOrder(ctx context.Context, action RoutedAction) error {
	order, ok, err := x.shop.LatestOrder(ctx, action.ConversationKey)
	if err != nil {
		return fmt.Errorf("load latest order: %w", err)
	}
	if !ok {
		return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(msgTrackNone)}})
	}

	return x.Deliver(ctx, action.ConversationKey, action.Lang, Effect{Replies: []Reply{textReply(orderSummary(order, x.pricing.Currency()))}})
}

func orderSummary(order commerce.Order, currency string) string {
	return fmt.Sprintf("Order %s — %s\nPlaced: %s\nTotal: %s %.2f (%s)",
		order.ID, strings.ReplaceAll(order.Status, "_", " "),
		order.CreatedAt.Format("2 Jan 2006 15:04"),
		currency, order.Total, order.PaymentMethod)
}
