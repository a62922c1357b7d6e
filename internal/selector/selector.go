// Package selector orchestrates one screen-share selection flow per host
// window: fetch the catalog, show the picker surface, wait for the user,
// map the picked id back to the authoritative capture source and resolve
// the caller's callback exactly once.
package selector

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/picker"
)

var (
	// ErrNoSources means the catalog came back empty — benign, no picker is shown.
	ErrNoSources = errors.New("selector: no capturable sources")
	// ErrStaleSource means the picker returned an id absent from this flow's
	// catalog (tampered or stale message). The unverified handle is never
	// forwarded downstream.
	ErrStaleSource = errors.New("selector: selected source not in catalog")
	// ErrPickerTimeout means the picker surface never signalled readiness
	// after its window was opened (browser failed to launch, tab closed
	// before the handshake). The flow is abandoned rather than wedged.
	ErrPickerTimeout = errors.New("selector: picker surface never became ready")
)

// fetchTimeout bounds catalog enumeration; a hung platform call must not
// leave the flow pending forever.
const fetchTimeout = 10 * time.Second

// readyTimeout bounds the window-open → picker-ready handshake. Closure of
// a connected surface is caught by the transport drop; a surface that never
// connects has no transport to drop, so a deadline is the only exit path.
const readyTimeout = 30 * time.Second

// OutcomeKind tags how a flow ended.
type OutcomeKind int

const (
	OutcomeSelected OutcomeKind = iota // user confirmed a verified source
	OutcomeCancelled                   // user declined, by any gesture
	OutcomeFailed                      // platform error, empty catalog, tampered id
)

// Outcome is the tagged result of one selection flow. Source is non-nil
// only for OutcomeSelected; Err is non-nil only for OutcomeFailed.
type Outcome struct {
	Kind   OutcomeKind
	Source *capture.Source
	Err    error
}

func selected(src *capture.Source) Outcome { return Outcome{Kind: OutcomeSelected, Source: src} }
func cancelled() Outcome                   { return Outcome{Kind: OutcomeCancelled} }
func failed(err error) Outcome             { return Outcome{Kind: OutcomeFailed, Err: err} }

// Callback receives the flow outcome. Invoked exactly once per Show.
type Callback func(Outcome)

// Surface is the slice of picker.Surface the selector drives. Narrowed to
// an interface so tests can substitute a fake surface.
type Surface interface {
	Open(catalog []capture.Serializable, onResult func(picker.Result)) error
	Focus()
	Close()
	Ready() bool
	HandleReady(senderID string)
	HandleSelected(senderID string, payload map[string]any)
	HandleCancelled(senderID string)
	SurfaceGone(senderID string)
	Owns(senderID string) bool
}

// SurfaceFactory builds a picker surface for a new flow.
type SurfaceFactory func(flowID string) Surface

// Selector owns at most one selection flow for one host window. The pending
// callback slot and the current catalog belong exclusively to this instance.
type Selector struct {
	windowID   string
	fetch      capture.Fetcher
	newSurface SurfaceFactory

	// readiness handshake deadline; the package default unless a test
	// shortens it.
	readyTimeout time.Duration

	mu      sync.Mutex
	pending Callback
	flowID  string
	catalog []capture.Source
	surface Surface
}

// New creates a selector for the given host window.
func New(windowID string, fetch capture.Fetcher, factory SurfaceFactory) *Selector {
	return &Selector{
		windowID:     windowID,
		fetch:        fetch,
		newSurface:   factory,
		readyTimeout: readyTimeout,
	}
}

// WindowID identifies the owning host window in the registry.
func (s *Selector) WindowID() string { return s.windowID }

// Show starts a selection flow and guarantees cb is invoked exactly once.
// If a flow is already pending the existing picker is refocused instead and
// cb is NOT registered — the original flow's resolution is unaffected.
func (s *Selector) Show(cb Callback) {
	s.mu.Lock()
	if s.pending != nil {
		surf := s.surface
		s.mu.Unlock()
		log.Printf("SELECTOR [%s]: flow already pending, refocusing picker", s.windowID)
		if surf != nil {
			surf.Focus()
		}
		return
	}
	flowID := uuid.NewString()
	s.pending = cb
	s.flowID = flowID
	s.mu.Unlock()

	log.Printf("SELECTOR [%s]: flow %s started", s.windowID, flowID)
	go s.runFetch(flowID)
}

func (s *Selector) runFetch(flowID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	sources, err := s.fetch.FetchSources(ctx)
	if err != nil {
		log.Printf("SELECTOR [%s]: catalog fetch failed: %v", s.windowID, err)
		s.resolve(flowID, failed(err))
		return
	}
	if len(sources) == 0 {
		// Benign: nothing capturable. No picker is shown for an empty catalog.
		log.Printf("SELECTOR [%s]: catalog empty, resolving without picker", s.windowID)
		s.resolve(flowID, failed(ErrNoSources))
		return
	}

	s.mu.Lock()
	if s.flowID != flowID || s.pending == nil {
		// Cancelled while enumerating.
		s.mu.Unlock()
		return
	}
	s.catalog = sources
	surf := s.newSurface(flowID)
	s.surface = surf
	s.mu.Unlock()

	err = surf.Open(capture.SerializeCatalog(sources), func(r picker.Result) {
		if r.Confirmed {
			s.confirm(flowID, r.Choice)
		} else {
			s.resolve(flowID, cancelled())
		}
	})
	if err != nil {
		log.Printf("SELECTOR [%s]: picker open failed: %v", s.windowID, err)
		s.resolve(flowID, failed(err))
		return
	}

	time.AfterFunc(s.readyTimeout, func() { s.expireIfUnready(flowID) })
}

// expireIfUnready abandons the flow when its picker never completed the
// readiness handshake before the deadline. A flow that resolved, was
// superseded, or whose surface did report ready is untouched.
func (s *Selector) expireIfUnready(flowID string) {
	s.mu.Lock()
	surf := s.surface
	live := s.flowID == flowID && s.pending != nil
	s.mu.Unlock()
	if !live || surf == nil || surf.Ready() {
		return
	}
	log.Printf("SELECTOR [%s]: picker never became ready, abandoning flow %s", s.windowID, flowID)
	s.resolve(flowID, failed(ErrPickerTimeout))
}

// confirm maps the serializable choice back to the authoritative catalog
// entry. The boundary-crossed object is never trusted beyond its id.
func (s *Selector) confirm(flowID string, choice capture.Serializable) {
	s.mu.Lock()
	var match *capture.Source
	if s.flowID == flowID {
		for i := range s.catalog {
			if s.catalog[i].ID == choice.ID {
				src := s.catalog[i]
				match = &src
				break
			}
		}
	}
	s.mu.Unlock()

	if match == nil {
		log.Printf("SELECTOR [%s]: selected id %q not in catalog — failing flow", s.windowID, choice.ID)
		s.resolve(flowID, failed(ErrStaleSource))
		return
	}
	s.resolve(flowID, selected(match))
}

// resolve finishes the flow exactly once: clears the pending slot, tears the
// surface down (idempotently) and then invokes the callback. Late results
// for a superseded flow id are dropped.
func (s *Selector) resolve(flowID string, out Outcome) {
	s.mu.Lock()
	if s.flowID != flowID || s.pending == nil {
		s.mu.Unlock()
		return
	}
	cb := s.pending
	surf := s.surface
	s.pending = nil
	s.flowID = ""
	s.catalog = nil
	s.surface = nil
	s.mu.Unlock()

	if surf != nil {
		surf.Close()
	}
	switch out.Kind {
	case OutcomeSelected:
		log.Printf("SELECTOR [%s]: flow resolved — selected %q", s.windowID, out.Source.ID)
	case OutcomeCancelled:
		log.Printf("SELECTOR [%s]: flow resolved — cancelled", s.windowID)
	case OutcomeFailed:
		log.Printf("SELECTOR [%s]: flow resolved — failed: %v", s.windowID, out.Err)
	}
	cb(out)
}

// IsOpen reports whether a picker surface is currently displayed.
func (s *Selector) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && s.surface != nil
}

// Pending reports whether a flow is in progress (picker shown or catalog
// still being fetched).
func (s *Selector) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Cancel force-resolves the current flow as cancelled — used when the host
// window is destroyed. No-op when idle.
func (s *Selector) Cancel() {
	s.mu.Lock()
	flowID := s.flowID
	s.mu.Unlock()
	if flowID != "" {
		s.resolve(flowID, cancelled())
	}
}

// CurrentSurface returns the active surface and flow id, or ("", nil) when
// no picker is up. The registry uses it to route inbound picker messages.
func (s *Selector) CurrentSurface() (string, Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowID, s.surface
}
