package engine

// Translator localizes user-visible text. It is an optional
// collaborator: the default passes text through unchanged and the
// engine behaves identically either way.
type Translator interface {
	Translate(lang string, text string) string
}

// NoopTranslator returns text unchanged.
type NoopTranslator struct{}

// Translate implements Translator.
func (NoopTranslator) Translate(_ string, text string) string {
	return text
}

// User-visible copy. Components never send these directly; prompts go
// out through the executor and the fallback only ever leaves the facade.
const (
	msgWelcome          = "Welcome! I can show you our catalog, manage your cart, and take your order right here in chat."
	msgMenu             = "What would you like to do?"
	msgMenuFooter       = "Reply \"menu\" anytime to come back here."
	msgHelp             = "I understand a few things: \"catalog\" to browse, \"cart\" to review your cart, \"checkout\" to order, \"track\" for delivery status, or an order reference like ORD-1A2B3C4D. \"agent\" reaches a human."
	msgHumanHandoff     = "Got it, a member of our team will reply here as soon as possible."
	msgFallback         = "Something went wrong on our side. Please try again, or type \"menu\" to start over."
	msgPleaseWait       = "Please wait a moment, I'm still working on your last message."
	msgCatalogEmpty     = "Our catalog is being restocked right now. Please check back soon."
	msgCatalogBody      = "Here's what we have in stock. Tap an item to add it to your cart."
	msgCatalogButton    = "View products"
	msgProductMissing   = "Sorry, that product isn't available anymore."
	msgAddedToCart      = "Added to your cart."
	msgCartEmpty        = "Your cart is empty. Browse the catalog to add something."
	msgCheckoutIntro    = "Let's get your order placed. You can type \"cancel\" at any point to stop."
	msgAskName          = "What name should the order be delivered to?"
	msgNameInvalid      = "That name looks too short. Please enter the full name for delivery."
	msgAskAddress       = "What's the full delivery address (house, street, landmark)?"
	msgAddressInvalid   = "That address looks too short. Please include house, street, and landmark (at least 10 characters)."
	msgAskCity          = "Which city?"
	msgCityInvalid      = "Please enter a valid city name."
	msgAskPincode       = "What's the 6-digit pincode?"
	msgPincodeInvalid   = "A pincode is exactly 6 digits. Please re-enter it."
	msgPincodeNotServed = "Sorry, we don't deliver to that pincode yet. Please try another one."
	msgAddressEdit      = "No problem, let's take the details again."
	msgConfirmRetry     = "Please confirm the address or choose to edit it."
	msgPaymentRetry     = "Please choose a payment method."
	msgFlowCanceled     = "Checkout canceled. Your cart is untouched."
	msgFlowExpired      = "Your previous checkout session expired, so we're starting over."
	msgTrackNone        = "I couldn't find any orders for you yet. Type \"catalog\" to start shopping."
	msgOrderNotFound    = "I couldn't find an order with that reference. Double-check the code, e.g. ORD-1A2B3C4D."
	msgOnlineNext       = "You'll receive a secure payment link shortly to complete the order."
)

// Button labels.
const (
	labelCatalog  = "Browse catalog"
	labelCart     = "View cart"
	labelHelp     = "Help"
	labelCheckout = "Checkout"
	labelTrack    = "Track order"
	labelConfirm  = "Confirm"
	labelEdit     = "Edit"
	labelCOD      = "Cash on delivery"
	labelOnline   = "Pay online"
)
