package bridge

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrRejected is returned to content for any request/response violation.
// Deliberately generic — the boundary never leaks why a call was refused.
var ErrRejected = errors.New("request rejected")

// Handler processes a fire-and-forget message from across the boundary.
type Handler func(senderID string, payload map[string]any)

// CallHandler processes a request/response message and returns the reply.
type CallHandler func(senderID string, payload map[string]any) (any, error)

// Emitter delivers an outbound message to one attached surface. The Wails
// runtime (host webview) and each picker WebSocket implement this.
type Emitter interface {
	Emit(channel string, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(channel string, payload any)

func (f EmitterFunc) Emit(channel string, payload any) { f(channel, payload) }

// Recorder receives audit records for dropped or rejected messages.
// Satisfied by audit.Log; a nil Recorder disables persistence.
type Recorder interface {
	Record(kind, senderID, channel, detail string)
}

// Limits configures the per-sender sliding-window rate limiter.
type Limits struct {
	PerChannel int           // messages per sender per channel per window
	Global     int           // messages across all senders per window, 0 = unlimited
	Window     time.Duration // sliding window size
}

// DefaultLimits matches the shipped config defaults.
func DefaultLimits() Limits {
	return Limits{PerChannel: 100, Global: 2000, Window: time.Minute}
}

// Bus is the single composition point for boundary messaging. Handlers are
// registered validated from the start: registration refuses channels absent
// from the allowlist, so there is no unvalidated entry point to wrap later.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	calls    map[string]CallHandler
	emitters map[string]Emitter

	limiter *rateLimiter
	audit   Recorder
}

// New creates a Bus with the given rate limits and optional audit recorder.
func New(limits Limits, rec Recorder) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		calls:    make(map[string]CallHandler),
		emitters: make(map[string]Emitter),
		limiter:  newRateLimiter(limits.PerChannel, limits.Global, limits.Window),
		audit:    rec,
	}
}

// Handle registers a fire-and-forget handler. Fails when the channel is not
// allowlisted or already has a handler.
func (b *Bus) Handle(channel string, h Handler) error {
	if !Allowed(channel) {
		return fmt.Errorf("bridge: channel %q not in allowlist", channel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[channel]; dup {
		return fmt.Errorf("bridge: channel %q already registered", channel)
	}
	b.handlers[channel] = h
	return nil
}

// HandleCall registers a request/response handler under the same rules.
func (b *Bus) HandleCall(channel string, h CallHandler) error {
	if !Allowed(channel) {
		return fmt.Errorf("bridge: channel %q not in allowlist", channel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.calls[channel]; dup {
		return fmt.Errorf("bridge: channel %q already registered", channel)
	}
	b.calls[channel] = h
	return nil
}

// AttachEmitter connects an outbound surface under id. Replaces any previous
// emitter with the same id.
func (b *Bus) AttachEmitter(id string, e Emitter) {
	b.mu.Lock()
	b.emitters[id] = e
	b.mu.Unlock()
}

// DetachEmitter disconnects a surface and forgets its rate-limit counters.
func (b *Bus) DetachEmitter(id string) {
	b.mu.Lock()
	delete(b.emitters, id)
	b.mu.Unlock()
	b.limiter.Forget(id)
}

// Dispatch routes an inbound fire-and-forget message. Unauthorized channels
// and rate-limit violations are dropped silently from the sender's point of
// view: logged here, recorded for audit, never thrown back into content.
func (b *Bus) Dispatch(senderID, channel string, payload map[string]any) {
	if !Validate(channel, payload) {
		log.Printf("BRIDGE: drop %s from %s (channel not allowlisted)", channel, senderID)
		b.record("unauthorized-channel", senderID, channel, "")
		return
	}
	if !b.limiter.Allow(senderID, channel) {
		log.Printf("BRIDGE: drop %s from %s (rate limit)", channel, senderID)
		b.record("rate-limited", senderID, channel, "")
		return
	}

	b.mu.RLock()
	h := b.handlers[channel]
	b.mu.RUnlock()
	if h == nil {
		log.Printf("BRIDGE: no handler for %s", channel)
		b.record("unhandled-channel", senderID, channel, "")
		return
	}
	h(senderID, payload)
}

// Call routes an inbound request/response message. Violations reject with
// ErrRejected instead of leaking internals.
func (b *Bus) Call(senderID, channel string, payload map[string]any) (any, error) {
	if !Validate(channel, payload) {
		log.Printf("BRIDGE: reject call %s from %s (channel not allowlisted)", channel, senderID)
		b.record("unauthorized-channel", senderID, channel, "call")
		return nil, ErrRejected
	}
	if !b.limiter.Allow(senderID, channel) {
		log.Printf("BRIDGE: reject call %s from %s (rate limit)", channel, senderID)
		b.record("rate-limited", senderID, channel, "call")
		return nil, ErrRejected
	}

	b.mu.RLock()
	h := b.calls[channel]
	b.mu.RUnlock()
	if h == nil {
		b.record("unhandled-channel", senderID, channel, "call")
		return nil, ErrRejected
	}
	return h(senderID, payload)
}

// Send broadcasts an outbound message to every attached surface. Outbound
// traffic obeys the same allowlist: a channel missing from the list is a
// programming error and is dropped loudly.
func (b *Bus) Send(channel string, payload any) {
	if !b.checkOutbound(channel, payload) {
		return
	}
	b.mu.RLock()
	targets := make([]Emitter, 0, len(b.emitters))
	for _, e := range b.emitters {
		targets = append(targets, e)
	}
	b.mu.RUnlock()
	for _, e := range targets {
		e.Emit(channel, payload)
	}
}

// SendTo delivers an outbound message to a single surface. Unknown surface
// ids are ignored (the surface may have just closed).
func (b *Bus) SendTo(surfaceID, channel string, payload any) {
	if !b.checkOutbound(channel, payload) {
		return
	}
	b.mu.RLock()
	e := b.emitters[surfaceID]
	b.mu.RUnlock()
	if e != nil {
		e.Emit(channel, payload)
	}
}

func (b *Bus) checkOutbound(channel string, payload any) bool {
	m, _ := payload.(map[string]any)
	if !Validate(channel, m) {
		log.Printf("BRIDGE: refuse outbound %s (channel not allowlisted)", channel)
		b.record("unauthorized-outbound", "shell", channel, "")
		return false
	}
	return true
}

func (b *Bus) record(kind, senderID, channel, detail string) {
	if b.audit != nil {
		b.audit.Record(kind, senderID, channel, detail)
	}
}
