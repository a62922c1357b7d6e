package selector

import (
	"log"
	"sync"
)

// Registry maps host windows to their selectors so the message-handling
// layer holds explicit references instead of a process-wide "currently
// active selector" variable. Multiple independent host windows can run
// unrelated flows safely.
type Registry struct {
	mu        sync.RWMutex
	selectors map[string]*Selector
}

func NewRegistry() *Registry {
	return &Registry{selectors: make(map[string]*Selector)}
}

// Register adds (or replaces) the selector for a host window.
func (r *Registry) Register(sel *Selector) {
	r.mu.Lock()
	r.selectors[sel.WindowID()] = sel
	r.mu.Unlock()
}

// Remove cancels and drops the selector of a destroyed host window.
func (r *Registry) Remove(windowID string) {
	r.mu.Lock()
	sel := r.selectors[windowID]
	delete(r.selectors, windowID)
	r.mu.Unlock()
	if sel != nil {
		sel.Cancel()
	}
}

// Get returns the selector for a host window, or nil.
func (r *Registry) Get(windowID string) *Selector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectors[windowID]
}

// byFlow finds the selector whose active flow matches flowID.
func (r *Registry) byFlow(flowID string) (sel *Selector, surf Surface) {
	if flowID == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.selectors {
		if id, sf := s.CurrentSurface(); id == flowID && sf != nil {
			return s, sf
		}
	}
	return nil, nil
}

// RouteReady delivers a picker-ready signal to the surface owning flowID.
func (r *Registry) RouteReady(flowID, senderID string) {
	if _, surf := r.byFlow(flowID); surf != nil {
		surf.HandleReady(senderID)
		return
	}
	log.Printf("SELECTOR: ready for unknown flow %q dropped", flowID)
}

// RouteSelected delivers a confirmed choice to the surface owning flowID.
func (r *Registry) RouteSelected(flowID, senderID string, payload map[string]any) {
	if _, surf := r.byFlow(flowID); surf != nil {
		surf.HandleSelected(senderID, payload)
		return
	}
	log.Printf("SELECTOR: selection for unknown flow %q dropped", flowID)
}

// RouteCancelled delivers an explicit cancellation to the surface owning flowID.
func (r *Registry) RouteCancelled(flowID, senderID string) {
	if _, surf := r.byFlow(flowID); surf != nil {
		surf.HandleCancelled(senderID)
		return
	}
	log.Printf("SELECTOR: cancel for unknown flow %q dropped", flowID)
}

// SurfaceClosed handles a picker transport disappearing without a result.
// Whichever active surface is bound to senderID treats it as implicit
// cancellation; surfaces that never reached readiness are unaffected.
func (r *Registry) SurfaceClosed(senderID string) {
	r.mu.RLock()
	all := make([]*Selector, 0, len(r.selectors))
	for _, s := range r.selectors {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		if _, surf := s.CurrentSurface(); surf != nil && surf.Owns(senderID) {
			surf.SurfaceGone(senderID)
			return
		}
	}
}

// CancelAll force-cancels every pending flow (shell shutdown).
func (r *Registry) CancelAll() {
	r.mu.RLock()
	all := make([]*Selector, 0, len(r.selectors))
	for _, s := range r.selectors {
		all = append(all, s)
	}
	r.mu.RUnlock()
	for _, s := range all {
		s.Cancel()
	}
}
