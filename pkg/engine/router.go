package engine

import (
	"regexp"
	"strings"

	"chatcart/pkg/bus"
)

// ActionKind is the closed set of actions the engine can execute.
// Dispatch over it is exhaustive; adding a kind without handling it in
// the executor fails at the executor's default case, not silently.
type ActionKind int

const (
	ActionWelcome ActionKind = iota
	ActionMainMenu
	ActionBrowseCatalog
	ActionAddToCart
	ActionViewCart
	ActionStartCheckout
	ActionOrderStatus
	ActionTrackOrder
	ActionHelp
	ActionHumanHandoff
)

var actionNames = map[ActionKind]string{
	ActionWelcome:       "welcome",
	ActionMainMenu:      "main_menu",
	ActionBrowseCatalog: "browse_catalog",
	ActionAddToCart:     "add_to_cart",
	ActionViewCart:      "view_cart",
	ActionStartCheckout: "start_checkout",
	ActionOrderStatus:   "order_status",
	ActionTrackOrder:    "track_order",
	ActionHelp:          "help",
	ActionHumanHandoff:  "human_handoff",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// RoutedAction is the ephemeral outcome of classifying one inbound
// event. Arg carries an extracted identifier where the kind needs one
// (product id for add-to-cart, order reference for status lookup).
type RoutedAction struct {
	Kind            ActionKind
	ConversationKey string
	Lang            string
	Arg             string
}

// ConversationContext is the minimal context routing needs.
type ConversationContext struct {
	Lang         string
	FirstContact bool
}

// Canonical button and list payload identifiers.
const (
	ButtonCatalog  = "menu_catalog"
	ButtonCart     = "menu_cart"
	ButtonHelp     = "menu_help"
	ButtonCheckout = "cart_checkout"
	ButtonTrack    = "menu_track"
	ButtonHuman    = "menu_human"

	addToCartPrefix = "add:"
)

// orderRefPattern matches order references like ORD-1A2B3C4D.
var orderRefPattern = regexp.MustCompile(`\bord-[0-9a-f]{8}\b`)

var buttonActions = map[string]ActionKind{
	ButtonCatalog:  ActionBrowseCatalog,
	ButtonCart:     ActionViewCart,
	ButtonHelp:     ActionHelp,
	ButtonCheckout: ActionStartCheckout,
	ButtonTrack:    ActionTrackOrder,
	ButtonHuman:    ActionHumanHandoff,
}

type keywordRule struct {
	pattern *regexp.Regexp
	kind    ActionKind
}

// Router classifies normalized inbound events into actions. It is
// pure: no side effects, no storage access.
type Router struct {
	rules []keywordRule
}

// NewRouter builds a router with the default keyword rules. Rules are
// evaluated in order; the first match wins.
func NewRouter() *Router {
	return &Router{
		rules: []keywordRule{
			{regexp.MustCompile(`\btrack(ing)?\b`), ActionTrackOrder},
			{regexp.MustCompile(`\b(status|where is my order)\b`), ActionTrackOrder},
			{regexp.MustCompile(`\b(menu|start|hi|hello|hey)\b`), ActionMainMenu},
			{regexp.MustCompile(`\b(catalog|catalogue|shop|products?|browse)\b`), ActionBrowseCatalog},
			{regexp.MustCompile(`\bcart\b`), ActionViewCart},
			{regexp.MustCompile(`\b(checkout|buy|order now|place order)\b`), ActionStartCheckout},
			{regexp.MustCompile(`\bhelp\b`), ActionHelp},
			{regexp.MustCompile(`\b(agent|human|support)\b`), ActionHumanHandoff},
		},
	}
}

// Route maps one inbound event to an action.
//
// Resolution order: first-ever contact, canonical button id, order
// reference pattern, keyword rules, then the main-menu default.
func (r *Router) Route(event bus.InboundEvent, convCtx ConversationContext) RoutedAction {
	action := RoutedAction{
		Kind:            ActionMainMenu,
		ConversationKey: event.ConversationKey,
		Lang:            convCtx.Lang,
	}

	if convCtx.FirstContact {
		action.Kind = ActionWelcome
		return action
	}

	normalized := strings.ToLower(strings.TrimSpace(event.Payload))

	if event.Kind == bus.KindButton || event.Kind == bus.KindList {
		if kind, ok := buttonActions[normalized]; ok {
			action.Kind = kind
			return action
		}
		if id, ok := strings.CutPrefix(normalized, addToCartPrefix); ok && id != "" {
			action.Kind = ActionAddToCart
			action.Arg = id
			return action
		}
		// Unrecognized payloads fall through to the default menu.
		return action
	}

	if ref := orderRefPattern.FindString(normalized); ref != "" {
		action.Kind = ActionOrderStatus
		action.Arg = strings.ToUpper(ref)
		return action
	}

	for _, rule := range r.rules {
		if rule.pattern.MatchString(normalized) {
			action.Kind = rule.kind
			return action
		}
	}

	return action
}
