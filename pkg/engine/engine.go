// Package engine implements the conversational message-processing
// core: deduplication, per-conversation serialization, rate limiting,
// intent routing, the persisted order flow, and fallback handling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatcart/pkg/bus"
	"chatcart/pkg/channel"
	"chatcart/pkg/commerce"
	"chatcart/pkg/config"
	"chatcart/pkg/store"
)

const contactKeyPrefix = "contact:"

// errProcessTimeout marks a processing attempt that exceeded the
// per-event deadline. In-flight store or gateway calls are left to
// finish on their own; the engine only stops waiting on them.
var errProcessTimeout = errors.New("event processing timed out")

// Deps carries the engine's collaborators. Telemetry and Translator
// are optional; nil installs no-op defaults.
type Deps struct {
	Config    config.EngineConfig
	Commerce  config.CommerceConfig
	KV        store.KV
	Flows     store.FlowStore
	Shop      commerce.Store
	Sender    channel.Sender
	Logger    *slog.Logger
	Telemetry Telemetry
	Translate Translator
}

// Engine is the single entry point for inbound events. One HandleEvent
// call per delivery; redeliveries are deduplicated, events for one
// conversation are processed strictly one at a time, and every failure
// path ends in exactly one fallback message.
type Engine struct {
	log       *slog.Logger
	kv        store.KV
	dedup     *Deduplicator
	queue     *ConversationQueue
	limiter   *SpacingLimiter
	bulk      *BurstLimiter
	router    *Router
	flow      *FlowMachine
	exec      *Executor
	telemetry Telemetry
	lang      string
	timeout   time.Duration

	noticeMu sync.Mutex
	notices  map[string]struct{}
}

// New assembles the engine from its collaborators.
func New(deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "engine")

	telemetry := deps.Telemetry
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}

	pricing := commerce.NewPricing(deps.Commerce)
	flow := NewFlowMachine(deps.Flows, deps.Shop, pricing, deps.Config.FlowTTL(), log, telemetry)

	return &Engine{
		log:       log,
		kv:        deps.KV,
		dedup:     NewDeduplicator(deps.KV, deps.Config.DedupTTL(), deps.Config.CacheSize()),
		queue:     NewConversationQueue(),
		limiter:   NewSpacingLimiter(deps.KV, deps.Config.MinResponseSpacing()),
		bulk:      NewBurstLimiter(5, 20),
		router:    NewRouter(),
		flow:      flow,
		exec:      NewExecutor(deps.Sender, deps.Shop, pricing, flow, deps.Translate, log),
		telemetry: telemetry,
		lang:      deps.Config.Lang(),
		timeout:   deps.Config.ProcessTimeout(),
		notices:   make(map[string]struct{}),
	}
}

// Flow exposes the flow machine, mainly for tests and operator tooling.
func (e *Engine) Flow() *FlowMachine {
	return e.flow
}

// HandleEvent processes one inbound delivery end to end.
//
// The path is fixed: dedup check, per-conversation queue, rate check,
// route or advance, execute. Duplicates return nil with no output.
func (e *Engine) HandleEvent(ctx context.Context, event bus.InboundEvent) error {
	if event.EventID == "" || event.ConversationKey == "" {
		return errors.New("event id and conversation key are required")
	}

	e.telemetry.EventReceived(string(event.Kind))

	seen, err := e.dedup.SeenBefore(ctx, event.EventID)
	if err != nil {
		// Without a dedup verdict, processing risks a duplicate side
		// effect; treat as a full failure instead.
		e.sendFallback(event.ConversationKey)
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		e.log.Debug("Dropping duplicate event", "event_id", event.EventID, "conversation_key", event.ConversationKey)
		e.telemetry.DuplicateDropped()
		return nil
	}

	return e.queue.Submit(ctx, event.ConversationKey, func() error {
		return e.process(ctx, event)
	})
}

// ExecuteDirect performs an admin-synthesized action, bypassing dedup
// and queueing; the admin layer serializes its own requests.
func (e *Engine) ExecuteDirect(ctx context.Context, action RoutedAction) error {
	if action.Lang == "" {
		action.Lang = e.lang
	}

	return e.exec.Execute(ctx, action)
}

// Broadcast sends one text to many conversations through the bulk
// token bucket, skipping keys whose spacing window is closed.
func (e *Engine) Broadcast(ctx context.Context, keys []string, text string) error {
	for _, key := range keys {
		if err := e.bulk.Wait(ctx, "broadcast"); err != nil {
			return fmt.Errorf("broadcast throttle: %w", err)
		}

		allowed, err := e.limiter.Allow(ctx, key)
		if err != nil {
			return fmt.Errorf("broadcast rate check: %w", err)
		}
		if !allowed {
			e.log.Debug("Skipping broadcast for rate-limited conversation", "conversation_key", key)
			continue
		}

		if _, err := e.exec.sender.SendText(ctx, key, text); err != nil {
			e.log.Error("Broadcast send failed", "conversation_key", key, "error", err)
		}
	}

	return nil
}

// process runs inside the conversation queue slot for the event's key.
func (e *Engine) process(ctx context.Context, event bus.InboundEvent) error {
	key := event.ConversationKey

	allowed, err := e.limiter.Allow(ctx, key)
	if err != nil {
		e.sendFallback(key)
		return fmt.Errorf("rate check: %w", err)
	}
	if !allowed {
		e.telemetry.RateLimited()
		e.scheduleWaitNotice(key)
		return nil
	}

	firstContact, err := e.kv.SetNX(ctx, contactKeyPrefix+key, "1", 0)
	if err != nil {
		e.sendFallback(key)
		return fmt.Errorf("first-contact check: %w", err)
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.dispatch(tctx, event, firstContact)
	}()

	select {
	case err = <-done:
	case <-tctx.Done():
		err = errProcessTimeout
	}

	if err != nil {
		e.log.Error("Event processing failed", "event_id", event.EventID, "conversation_key", key, "error", err)
		e.sendFallback(key)
		return err
	}

	return nil
}

// dispatch routes the event to the flow machine when a flow is active,
// otherwise through the intent router to the executor.
func (e *Engine) dispatch(ctx context.Context, event bus.InboundEvent, firstContact bool) error {
	key := event.ConversationKey

	if !firstContact && advanceable(event.Kind) {
		active, expired, err := e.flow.Status(ctx, key)
		if err != nil {
			return fmt.Errorf("flow status: %w", err)
		}

		if active {
			effect, err := e.flow.Advance(ctx, key, event.Payload)
			if err != nil {
				return fmt.Errorf("advance flow: %w", err)
			}
			return e.exec.Deliver(ctx, key, e.lang, effect)
		}

		if expired {
			if err := e.exec.Deliver(ctx, key, e.lang, Effect{Replies: []Reply{textReply(msgFlowExpired)}}); err != nil {
				return err
			}
		}
	}

	action := e.router.Route(event, ConversationContext{Lang: e.lang, FirstContact: firstContact})
	if err := e.exec.Execute(ctx, action); err != nil {
		return fmt.Errorf("execute %s: %w", action.Kind, err)
	}

	return nil
}

// advanceable reports whether an event kind can feed an active flow.
func advanceable(kind bus.EventKind) bool {
	switch kind {
	case bus.KindText, bus.KindButton, bus.KindList:
		return true
	default:
		return false
	}
}

// scheduleWaitNotice queues at most one deferred "please wait" notice
// per conversation. The notice goes back through the limiter when the
// timer fires, so it can never spam; if another response reopened and
// reclosed the window first, the notice is simply dropped.
//
// The timer is in-process only. A restart loses pending notices, which
// costs one courtesy message, not correctness.
func (e *Engine) scheduleWaitNotice(key string) {
	e.noticeMu.Lock()
	if _, pending := e.notices[key]; pending {
		e.noticeMu.Unlock()
		return
	}
	e.notices[key] = struct{}{}
	e.noticeMu.Unlock()

	time.AfterFunc(e.limiter.Spacing(), func() {
		defer func() {
			e.noticeMu.Lock()
			delete(e.notices, key)
			e.noticeMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		allowed, err := e.limiter.Allow(ctx, key)
		if err != nil || !allowed {
			return
		}

		if _, err := e.exec.sender.SendText(ctx, key, msgPleaseWait); err != nil {
			e.log.Error("Wait notice send failed", "conversation_key", key, "error", err)
		}
	})
}

// sendFallback tells the counterpart something went wrong. It is the
// only place a failure message originates, and it is sent at most once
// per failed event. The send uses a fresh context: the event's own
// context may already be expired, and the whole point is to never
// leave the counterpart without a reply.
func (e *Engine) sendFallback(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e.telemetry.FallbackSent()
	if _, err := e.exec.sender.SendText(ctx, key, msgFallback); err != nil {
		e.log.Error("Fallback send failed", "conversation_key", key, "error", err)
	}
}
