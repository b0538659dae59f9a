package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Telemetry receives engine counters. It is an optional collaborator:
// the engine behaves identically with the no-op default installed.
type Telemetry interface {
	EventReceived(kind string)
	DuplicateDropped()
	RateLimited()
	FlowAdvanced(flowName string, step string)
	OrderPlaced(total float64)
	FallbackSent()
}

// NoopTelemetry discards all signals.
type NoopTelemetry struct{}

func (NoopTelemetry) EventReceived(string)        {}
func (NoopTelemetry) DuplicateDropped()           {}
func (NoopTelemetry) RateLimited()                {}
func (NoopTelemetry) FlowAdvanced(string, string) {}
func (NoopTelemetry) OrderPlaced(float64)         {}
func (NoopTelemetry) FallbackSent()               {}

// OTelTelemetry exports engine counters through an OpenTelemetry meter.
type OTelTelemetry struct {
	events     metric.Int64Counter
	duplicates metric.Int64Counter
	rateHits   metric.Int64Counter
	flowSteps  metric.Int64Counter
	orders     metric.Int64Counter
	orderValue metric.Float64Counter
	fallbacks  metric.Int64Counter
}

// NewOTelTelemetry registers the engine instruments on a meter.
func NewOTelTelemetry(meter metric.Meter) (*OTelTelemetry, error) {
	t := &OTelTelemetry{}

	var err error
	if t.events, err = meter.Int64Counter("chatcart.events.received"); err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	if t.duplicates, err = meter.Int64Counter("chatcart.events.duplicates"); err != nil {
		return nil, fmt.Errorf("create duplicates counter: %w", err)
	}
	if t.rateHits, err = meter.Int64Counter("chatcart.events.rate_limited"); err != nil {
		return nil, fmt.Errorf("create rate-limit counter: %w", err)
	}
	if t.flowSteps, err = meter.Int64Counter("chatcart.flow.steps"); err != nil {
		return nil, fmt.Errorf("create flow-steps counter: %w", err)
	}
	if t.orders, err = meter.Int64Counter("chatcart.orders.placed"); err != nil {
		return nil, fmt.Errorf("create orders counter: %w", err)
	}
	if t.orderValue, err = meter.Float64Counter("chatcart.orders.value"); err != nil {
		return nil, fmt.Errorf("create order-value counter: %w", err)
	}
	if t.fallbacks, err = meter.Int64Counter("chatcart.fallbacks.sent"); err != nil {
		return nil, fmt.Errorf("create fallbacks counter: %w", err)
	}

	return t, nil
}

func (t *OTelTelemetry) EventReceived(kind string) {
	t.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (t *OTelTelemetry) DuplicateDropped() {
	t.duplicates.Add(context.Background(), 1)
}

func (t *OTelTelemetry) RateLimited() {
	t.rateHits.Add(context.Background(), 1)
}

func (t *OTelTelemetry) FlowAdvanced(flowName string, step string) {
	t.flowSteps.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("flow", flowName),
		attribute.String("step", step),
	))
}

func (t *OTelTelemetry) OrderPlaced(total float64) {
	t.orders.Add(context.Background(), 1)
	t.orderValue.Add(context.Background(), total)
}

func (t *OTelTelemetry) FallbackSent() {
	t.fallbacks.Add(context.Background(), 1)
}
