package channel

import (
	"context"

	"chatcart/pkg/bus"
)

// Button is one quick-reply option. At most three are rendered per message.
type Button struct {
	ID    string
	Label string
}

// ListRow is one selectable row inside a list section.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under an optional title. At most ten sections
// of ten rows each are rendered per message.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Send limits enforced by outbound senders.
const (
	MaxButtons      = 3
	MaxListSections = 10
	MaxListRows     = 10
)

// Handler processes one inbound event from a transport adapter.
type Handler func(context.Context, bus.InboundEvent) error

// Adapter bridges one external transport (for example Telegram) into chatcart.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// Sender delivers outbound responses to a conversation. Implementations
// return a transport delivery identifier usable for status correlation.
type Sender interface {
	SendText(ctx context.Context, key string, text string) (string, error)
	SendButtons(ctx context.Context, key string, body string, buttons []Button, footer string) (string, error)
	SendList(ctx context.Context, key string, body string, buttonLabel string, sections []ListSection) (string, error)
	SendTemplate(ctx context.Context, key string, name string, params []string, lang string) (string, error)
}
