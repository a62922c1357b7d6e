package selector

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/picker"
)

// fakeSurface satisfies Surface without any window or transport.
type fakeSurface struct {
	mu       sync.Mutex
	flowID   string
	onResult func(picker.Result)
	opened   chan struct{}
	catalog  []capture.Serializable
	focused  int
	closed   int
	openErr  error
	sender   string
	ready    bool
}

func newFakeSurface(flowID string) *fakeSurface {
	return &fakeSurface{flowID: flowID, opened: make(chan struct{})}
}

func (f *fakeSurface) Open(catalog []capture.Serializable, onResult func(picker.Result)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.catalog = catalog
	f.onResult = onResult
	close(f.opened)
	return nil
}

func (f *fakeSurface) Focus() { f.mu.Lock(); f.focused++; f.mu.Unlock() }
func (f *fakeSurface) Close() { f.mu.Lock(); f.closed++; f.mu.Unlock() }

func (f *fakeSurface) HandleReady(sender string) {
	f.mu.Lock()
	f.ready = true
	f.sender = sender
	f.mu.Unlock()
}

func (f *fakeSurface) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}
func (f *fakeSurface) HandleSelected(_ string, payload map[string]any) {
	id, _ := payload["id"].(string)
	f.result(picker.Result{Confirmed: true, Choice: capture.Serializable{ID: id}})
}
func (f *fakeSurface) HandleCancelled(string) { f.result(picker.Result{}) }
func (f *fakeSurface) SurfaceGone(string)     { f.result(picker.Result{}) }
func (f *fakeSurface) Owns(senderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sender == senderID
}

func (f *fakeSurface) result(r picker.Result) {
	f.mu.Lock()
	cb := f.onResult
	f.mu.Unlock()
	if cb != nil {
		cb(r)
	}
}

func (f *fakeSurface) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-f.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("picker surface was never opened")
	}
}

func staticFetcher(sources []capture.Source, err error) capture.Fetcher {
	return capture.FetcherFunc(func(context.Context) ([]capture.Source, error) {
		return sources, err
	})
}

type harness struct {
	sel      *Selector
	surfaces []*fakeSurface
	mu       sync.Mutex
}

func newHarness(sources []capture.Source, fetchErr error) *harness {
	h := &harness{}
	h.sel = New("main", staticFetcher(sources, fetchErr), func(flowID string) Surface {
		fs := newFakeSurface(flowID)
		h.mu.Lock()
		h.surfaces = append(h.surfaces, fs)
		h.mu.Unlock()
		return fs
	})
	return h
}

func (h *harness) surface(t *testing.T) *fakeSurface {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		if len(h.surfaces) > 0 {
			fs := h.surfaces[len(h.surfaces)-1]
			h.mu.Unlock()
			return fs
		}
		h.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no picker surface was created")
	return nil
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
		return Outcome{}
	}
}

func TestConfirmResolvesAuthoritativeSource(t *testing.T) {
	t.Parallel()
	thumb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	h := newHarness([]capture.Source{{ID: "screen:0", Name: "Screen 1", Thumbnail: thumb}}, nil)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)
	fs.HandleSelected("surface-a", map[string]any{"id": "screen:0"})

	out := waitOutcome(t, outc)
	if out.Kind != OutcomeSelected {
		t.Fatalf("outcome = %v (err=%v), want Selected", out.Kind, out.Err)
	}
	// The callback receives the original catalog object, including the
	// native thumbnail the serializable form deliberately omitted.
	if out.Source == nil || out.Source.ID != "screen:0" || out.Source.Thumbnail == nil {
		t.Errorf("resolved source lost native fields: %+v", out.Source)
	}
	if h.sel.IsOpen() || h.sel.Pending() {
		t.Error("selector still pending after resolution")
	}
}

func TestEmptyCatalogResolvesWithoutPicker(t *testing.T) {
	t.Parallel()
	h := newHarness(nil, nil)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	out := waitOutcome(t, outc)
	if out.Kind != OutcomeFailed || !errors.Is(out.Err, ErrNoSources) {
		t.Errorf("outcome = %v (err=%v), want Failed(ErrNoSources)", out.Kind, out.Err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.surfaces) != 0 {
		t.Error("picker surface constructed for an empty catalog")
	}
}

func TestFetchFailureResolvesFailed(t *testing.T) {
	t.Parallel()
	boom := errors.New("platform exploded")
	h := newHarness(nil, boom)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	out := waitOutcome(t, outc)
	if out.Kind != OutcomeFailed || !errors.Is(out.Err, boom) {
		t.Errorf("outcome = %v (err=%v), want Failed(platform error)", out.Kind, out.Err)
	}
}

func TestCancelResolvesCancelled(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}, {ID: "window:7"}}, nil)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)
	fs.HandleCancelled("surface-a")

	if out := waitOutcome(t, outc); out.Kind != OutcomeCancelled {
		t.Errorf("outcome = %v, want Cancelled", out.Kind)
	}
	if fs.closed == 0 {
		t.Error("surface not torn down after resolution")
	}
}

func TestStaleIDResolvesFailed(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}, {ID: "screen:1"}}, nil)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)
	fs.HandleSelected("surface-a", map[string]any{"id": "screen:99"})

	out := waitOutcome(t, outc)
	if out.Kind != OutcomeFailed || !errors.Is(out.Err, ErrStaleSource) {
		t.Errorf("outcome = %v (err=%v), want Failed(ErrStaleSource)", out.Kind, out.Err)
	}
	if out.Source != nil {
		t.Error("tampered selection forwarded a source handle")
	}
}

func TestCallbackExactlyOnce(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 4)
	h.sel.Show(func(Outcome) {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- struct{}{}
	})

	fs := h.surface(t)
	fs.waitOpen(t)

	// Confirm, then fire every other exit path after resolution.
	fs.HandleSelected("surface-a", map[string]any{"id": "screen:0"})
	<-done
	fs.HandleCancelled("surface-a")
	fs.SurfaceGone("surface-a")
	h.sel.Cancel()
	h.sel.Cancel()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("callback invoked %d times, want exactly 1", calls)
	}
}

func TestShowWhilePendingRefocuses(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)

	secondRan := false
	h.sel.Show(func(Outcome) { secondRan = true })

	fs.mu.Lock()
	focused := fs.focused
	fs.mu.Unlock()
	if focused != 1 {
		t.Errorf("existing picker focused %d times, want 1", focused)
	}
	h.mu.Lock()
	if len(h.surfaces) != 1 {
		t.Errorf("second concurrent flow created a surface")
	}
	h.mu.Unlock()

	// Original flow still resolves normally.
	fs.HandleSelected("surface-a", map[string]any{"id": "screen:0"})
	if out := waitOutcome(t, outc); out.Kind != OutcomeSelected {
		t.Errorf("original flow outcome = %v, want Selected", out.Kind)
	}
	if secondRan {
		t.Error("second Show registered a callback")
	}
}

func TestForcedCancelDuringFetch(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	fetch := capture.FetcherFunc(func(ctx context.Context) ([]capture.Source, error) {
		<-release
		return []capture.Source{{ID: "screen:0"}}, nil
	})
	var factoryCalls int
	var mu sync.Mutex
	sel := New("main", fetch, func(flowID string) Surface {
		mu.Lock()
		factoryCalls++
		mu.Unlock()
		return newFakeSurface(flowID)
	})

	outc := make(chan Outcome, 1)
	sel.Show(func(o Outcome) { outc <- o })
	sel.Cancel()

	if out := waitOutcome(t, outc); out.Kind != OutcomeCancelled {
		t.Errorf("outcome = %v, want Cancelled", out.Kind)
	}

	// The late fetch completion must not open a picker for the dead flow.
	close(release)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if factoryCalls != 0 {
		t.Error("picker surface created after the flow was cancelled")
	}
}

func TestUnreadySurfaceAbandonedAfterDeadline(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)
	h.sel.readyTimeout = 20 * time.Millisecond

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	// The surface opens but its page never connects: no ready handshake,
	// no transport to drop. The deadline is the only exit path.
	h.surface(t).waitOpen(t)

	out := waitOutcome(t, outc)
	if out.Kind != OutcomeFailed || !errors.Is(out.Err, ErrPickerTimeout) {
		t.Fatalf("outcome = %v (err=%v), want Failed(ErrPickerTimeout)", out.Kind, out.Err)
	}
	if h.sel.Pending() {
		t.Error("selector still pending after handshake deadline")
	}

	// The selector recovers: a fresh Show starts a new flow instead of
	// refocusing the dead surface.
	outc2 := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc2 <- o })
	h.mu.Lock()
	surfaces := len(h.surfaces)
	h.mu.Unlock()
	if surfaces != 2 {
		t.Fatalf("surfaces created = %d, want 2 (new flow after expiry)", surfaces)
	}
	fs := h.surface(t)
	fs.waitOpen(t)
	fs.HandleReady("surface-b")
	fs.HandleSelected("surface-b", map[string]any{"id": "screen:0"})
	if out := waitOutcome(t, outc2); out.Kind != OutcomeSelected {
		t.Errorf("recovered flow outcome = %v, want Selected", out.Kind)
	}
}

func TestReadySurfaceOutlivesDeadline(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)
	h.sel.readyTimeout = 20 * time.Millisecond

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)
	fs.HandleReady("surface-a")

	// A connected surface may sit open indefinitely while the user decides;
	// the handshake deadline must not fire once readiness was reported.
	select {
	case out := <-outc:
		t.Fatalf("ready surface expired: %v (err=%v)", out.Kind, out.Err)
	case <-time.After(80 * time.Millisecond):
	}

	fs.HandleSelected("surface-a", map[string]any{"id": "screen:0"})
	if out := waitOutcome(t, outc); out.Kind != OutcomeSelected {
		t.Errorf("outcome = %v, want Selected", out.Kind)
	}
}

func TestRegistryRoutingAndImplicitCancel(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)
	reg := NewRegistry()
	reg.Register(h.sel)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })

	fs := h.surface(t)
	fs.waitOpen(t)
	fs.mu.Lock()
	fs.sender = "surface-a"
	fs.mu.Unlock()

	// Messages for unknown flows are dropped without touching the live one.
	reg.RouteSelected("not-a-flow", "surface-a", map[string]any{"id": "screen:0"})
	select {
	case <-outc:
		t.Fatal("unknown flow id resolved the live flow")
	case <-time.After(20 * time.Millisecond):
	}

	// The picker transport closing counts as implicit cancellation.
	reg.SurfaceClosed("surface-a")
	if out := waitOutcome(t, outc); out.Kind != OutcomeCancelled {
		t.Errorf("outcome = %v, want Cancelled", out.Kind)
	}
}

func TestRegistryRemoveCancelsPendingFlow(t *testing.T) {
	t.Parallel()
	h := newHarness([]capture.Source{{ID: "screen:0"}}, nil)
	reg := NewRegistry()
	reg.Register(h.sel)

	outc := make(chan Outcome, 1)
	h.sel.Show(func(o Outcome) { outc <- o })
	h.surface(t).waitOpen(t)

	reg.Remove("main")
	if out := waitOutcome(t, outc); out.Kind != OutcomeCancelled {
		t.Errorf("outcome = %v, want Cancelled", out.Kind)
	}
	if reg.Get("main") != nil {
		t.Error("selector still registered after Remove")
	}
}
