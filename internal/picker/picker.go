// Package picker drives the source-picker surface: a secondary window that
// renders the catalog and reports exactly one outcome. The controller here
// owns the surface state machine; rendering happens in the picker page
// (internal/ui/assets) which talks back over the bridge WebSocket.
package picker

import (
	"fmt"
	"log"
	"sync"

	"github.com/0xfcmartins/ms-wrappers/internal/bridge"
	"github.com/0xfcmartins/ms-wrappers/internal/capture"
)

// State of the picker surface, as seen from the shell side.
//
//	Initializing → Ready → Resolved
//
// The catalog is held back until the surface signals readiness, so a
// just-opened window can never miss the one-shot delivery. Once Resolved no
// further messages are processed or sent for this surface.
type State int

const (
	StateInitializing State = iota
	StateReady
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the single outcome a surface reports to its owner.
type Result struct {
	Confirmed bool                 // false = cancelled (button, escape, window closed)
	Choice    capture.Serializable // valid only when Confirmed
}

// Window abstracts the native popup hosting the picker page. Implemented by
// the shell (app.go); fakes in tests.
type Window interface {
	Open(flowID string) error
	Focus()
	Close()
}

// Sender is the outbound slice of the bridge the surface needs.
type Sender interface {
	SendTo(surfaceID, channel string, payload any)
}

// Surface is the shell-side controller for one picker window. All methods
// are safe for concurrent use; the result callback fires at most once.
type Surface struct {
	bus  Sender
	win  Window
	flow string

	mu       sync.Mutex
	state    State
	senderID string // bridge surface id, bound on the first picker-ready
	catalog  []capture.Serializable
	onResult func(Result)
}

// New creates a surface controller for the given flow id.
func New(bus Sender, win Window, flowID string) *Surface {
	return &Surface{bus: bus, win: win, flow: flowID, state: StateInitializing}
}

// FlowID returns the flow this surface belongs to. The picker page carries
// it in every frame so messages route to the right surface.
func (s *Surface) FlowID() string { return s.flow }

// Open shows the picker window. The catalog is retained and delivered only
// after HandleReady; onResult fires exactly once with the user's outcome.
func (s *Surface) Open(catalog []capture.Serializable, onResult func(Result)) error {
	s.mu.Lock()
	s.catalog = catalog
	s.onResult = onResult
	s.mu.Unlock()

	if err := s.win.Open(s.flow); err != nil {
		return fmt.Errorf("picker: open window: %w", err)
	}
	log.Printf("PICKER [%s]: window opened, %d source(s) pending", s.flow, len(catalog))
	return nil
}

// Focus raises the existing picker surface. Used when a second flow request
// arrives while this one is still pending. Beyond the native window focus it
// nudges the page itself over the bridge, since a browser-hosted page is out
// of reach of the native call.
func (s *Surface) Focus() {
	s.mu.Lock()
	senderID := s.senderID
	resolved := s.state == StateResolved
	s.mu.Unlock()

	s.win.Focus()
	if senderID != "" && !resolved {
		s.bus.SendTo(senderID, bridge.ChanPickerFocus, map[string]any{"flow": s.flow})
	}
}

// HandleReady processes the surface's init-complete signal and pushes the
// catalog once. Duplicate or post-resolution signals are ignored.
func (s *Surface) HandleReady(senderID string) {
	s.mu.Lock()
	if s.state != StateInitializing {
		s.mu.Unlock()
		log.Printf("PICKER [%s]: ignore ready in state %s", s.flow, s.state)
		return
	}
	s.state = StateReady
	s.senderID = senderID
	catalog := s.catalog
	s.mu.Unlock()

	s.bus.SendTo(senderID, bridge.ChanSourcesAvailable, map[string]any{
		"flow":    s.flow,
		"sources": catalog,
	})
	log.Printf("PICKER [%s]: catalog delivered to %s", s.flow, senderID)
}

// HandleSelected processes a confirmed choice. The first valid confirm wins;
// anything after resolution, or from a sender other than the bound surface,
// is ignored.
func (s *Surface) HandleSelected(senderID string, payload map[string]any) {
	choice, ok := parseChoice(payload)
	if !ok {
		log.Printf("PICKER [%s]: malformed selection payload, treating as cancel", s.flow)
		s.resolve(senderID, Result{})
		return
	}
	s.resolve(senderID, Result{Confirmed: true, Choice: choice})
}

// HandleCancelled processes an explicit cancellation (button or escape).
func (s *Surface) HandleCancelled(senderID string) {
	s.resolve(senderID, Result{})
}

// SurfaceGone handles the surface's transport closing without a prior
// result — the user closed the window directly. Implicit cancellation.
func (s *Surface) SurfaceGone(senderID string) {
	s.resolve(senderID, Result{})
}

// Close tears the surface down without reporting a result; the owner has
// already resolved the flow. Idempotent — closing a resolved or
// already-closed surface is a no-op.
func (s *Surface) Close() {
	s.mu.Lock()
	already := s.state == StateResolved
	s.state = StateResolved
	s.onResult = nil
	s.mu.Unlock()

	if !already {
		log.Printf("PICKER [%s]: closed by owner", s.flow)
	}
	s.win.Close()
}

// State returns the current machine state (tests, status endpoint).
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether the surface completed the readiness handshake. The
// selector's handshake deadline keys off this: a surface stuck in
// initializing past the deadline has no live page behind it.
func (s *Surface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateInitializing
}

// Owns reports whether senderID is the bridge surface bound to this picker.
func (s *Surface) Owns(senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.senderID != "" && s.senderID == senderID
}

func (s *Surface) resolve(senderID string, r Result) {
	s.mu.Lock()
	if s.state == StateResolved {
		s.mu.Unlock()
		return
	}
	// Before readiness the sender is unbound; only enforce identity once a
	// surface has claimed the flow.
	if s.senderID != "" && senderID != "" && senderID != s.senderID {
		s.mu.Unlock()
		log.Printf("PICKER [%s]: ignore result from foreign sender %s", s.flow, senderID)
		return
	}
	s.state = StateResolved
	cb := s.onResult
	s.onResult = nil
	s.mu.Unlock()

	if r.Confirmed {
		log.Printf("PICKER [%s]: confirmed %q", s.flow, r.Choice.ID)
	} else {
		log.Printf("PICKER [%s]: cancelled", s.flow)
	}
	if cb != nil {
		cb(r)
	}
}

// parseChoice extracts the Serializable fields from a sanitized payload.
// Inbound thumbnails are intentionally not read back — the projection drops
// them on the return trip.
func parseChoice(payload map[string]any) (capture.Serializable, bool) {
	id, _ := payload["id"].(string)
	if id == "" {
		return capture.Serializable{}, false
	}
	name, _ := payload["name"].(string)
	displayID, _ := payload["displayId"].(string)
	return capture.Serializable{ID: id, Name: name, DisplayID: displayID}, true
}
