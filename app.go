// app.go
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/0xfcmartins/ms-wrappers/internal/audit"
	"github.com/0xfcmartins/ms-wrappers/internal/bridge"
	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/config"
	"github.com/0xfcmartins/ms-wrappers/internal/logbuf"
	"github.com/0xfcmartins/ms-wrappers/internal/picker"
	"github.com/0xfcmartins/ms-wrappers/internal/selector"
	"github.com/0xfcmartins/ms-wrappers/internal/share"
	"github.com/0xfcmartins/ms-wrappers/internal/tray"
	uiassets "github.com/0xfcmartins/ms-wrappers/internal/ui/assets"
	"github.com/0xfcmartins/ms-wrappers/internal/util"
)

// hostWindowID identifies the single Wails host window in the selector
// registry. A multi-window build registers one selector per window id.
const hostWindowID = "main"

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfgPath string
	buf     *logbuf.Buffer
	icon    []byte

	cfgMu sync.RWMutex
	cfg   config.Config // guarded by cfgMu; swapped whole by the config watcher

	bus      *bridge.Bus
	auditLog *audit.Log
	registry *selector.Registry
	shareMgr *share.Manager
	trayIcon *tray.Tray

	bridgeURL string // http://127.0.0.1:PORT — picker page, /ws, /logs

	offerMu sync.Mutex
	offer   string // SDP offer of the active share session
}

func NewApp(cfgPath string, cfg config.Config, buf *logbuf.Buffer, icon []byte) *App {
	return &App{cfgPath: cfgPath, cfg: cfg, buf: buf, icon: icon}
}

func (a *App) startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	cfg := a.config()

	dataDir := util.ResolvePath(filepath.Dir(a.cfgPath), cfg.Paths.DataDir)
	al, err := audit.Open(dataDir)
	if err != nil {
		// Run without persistence rather than refuse to start.
		log.Printf("APP: audit log unavailable: %v", err)
	} else {
		a.auditLog = al
		log.Printf("APP: boundary audit log at %s", al.Path())
	}

	a.bus = bridge.New(bridge.Limits{
		PerChannel: cfg.Limits.PerChannel,
		Global:     cfg.Limits.Global,
		Window:     time.Duration(cfg.Limits.WindowSeconds) * time.Second,
	}, a.auditLog)

	// The host webview receives outbound channels as Wails runtime events.
	a.bus.AttachEmitter("host", bridge.EmitterFunc(func(channel string, payload any) {
		runtime.EventsEmit(a.ctx, channel, payload)
	}))

	a.shareMgr = share.New(func(st share.Status) {
		a.bus.Send(bridge.ChanShareStatusChanged, map[string]any{
			"isActive":   st.IsActive,
			"sourceId":   st.SourceID,
			"sourceName": st.SourceName,
		})
		if a.trayIcon != nil {
			if st.IsActive {
				a.trayIcon.SetTooltip(fmt.Sprintf("%s — sharing %s", a.productTitle(), st.SourceName))
			} else {
				a.trayIcon.SetTooltip(a.productTitle())
			}
		}
	})

	a.registry = selector.NewRegistry()

	if err := a.startBridgeServer(); err != nil {
		log.Printf("APP: bridge server start: %v", err)
	}

	sel := selector.New(hostWindowID, capture.NewPlatformFetcher(), func(flowID string) selector.Surface {
		return picker.New(a.bus, &pickerWindow{app: a}, flowID)
	})
	a.registry.Register(sel)

	if err := a.registerHandlers(); err != nil {
		log.Fatalf("APP: handler registration: %v", err)
	}

	if cfg.Tray.Enabled {
		a.trayIcon = tray.Start(tray.Options{
			Icon:    a.icon,
			Tooltip: a.productTitle(),
			OnShow:  func() { runtime.WindowShow(a.ctx) },
			OnQuit:  func() { runtime.Quit(a.ctx) },
		})
	}

	go a.watchConfig()

	a.navigate()
}

func (a *App) shutdown(ctx context.Context) {
	log.Println("SHUTDOWN: cancelling pending flows")
	a.registry.CancelAll()
	a.shareMgr.Stop()
	if a.trayIcon != nil {
		a.trayIcon.Quit()
	}
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	log.Println("SHUTDOWN: complete")
}

// beforeClose intercepts the window close button. With close-to-tray the
// window hides and the app keeps running behind the tray icon.
func (a *App) beforeClose(ctx context.Context) bool {
	cfg := a.config()
	if cfg.Tray.Enabled && cfg.Tray.CloseToTray {
		runtime.WindowHide(a.ctx)
		return true // prevent close → hide to tray
	}
	return false
}

// navigate points the webview at the remote product and applies the
// configured zoom. The embedded launcher page is only visible until this
// runs.
func (a *App) navigate() {
	cfg := a.config()
	url := cfg.ProductURL()
	log.Printf("APP: loading %s", url)
	runtime.WindowExecJS(a.ctx, fmt.Sprintf("window.location.href = %q;", url))
	a.applyZoom(cfg.Window.Zoom)
}

// applyZoom scales the page content. WebKitGTK has no native zoom hook in
// the Wails v2 runtime, so this goes through the CSS zoom property.
func (a *App) applyZoom(z float64) {
	if z <= 0 {
		z = 1.0
	}
	runtime.WindowExecJS(a.ctx, fmt.Sprintf("document.documentElement.style.zoom = %.2f;", z))
}

func (a *App) productTitle() string {
	return productTitles[a.config().Product.Name]
}

// config returns a snapshot of the current configuration. The watcher swaps
// the struct wholesale, so readers must go through here rather than touch
// a.cfg directly.
func (a *App) config() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) setConfig(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

// ── Bridge server: picker page + WebSocket + log snapshot ──

func (a *App) startBridgeServer() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	a.bridgeURL = "http://" + ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/", uiassets.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.bus.ServeWS(w, r, a.registry.SurfaceClosed)
	})
	mux.HandleFunc("/logs", a.buf.ServeJSON)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()

	log.Printf("APP: bridge server on %s", a.bridgeURL)
	return nil
}

// ── Inbound channel wiring ──

func (a *App) registerHandlers() error {
	reg := []struct {
		channel string
		h       bridge.Handler
	}{
		{bridge.ChanPickerReady, func(senderID string, payload map[string]any) {
			a.registry.RouteReady(payloadFlow(payload), senderID)
		}},
		{bridge.ChanSourceSelected, func(senderID string, payload map[string]any) {
			a.registry.RouteSelected(payloadFlow(payload), senderID, payload)
		}},
		{bridge.ChanSelectionCancelled, func(senderID string, payload map[string]any) {
			a.registry.RouteCancelled(payloadFlow(payload), senderID)
		}},
		{bridge.ChanTriggerScreenShare, func(senderID string, payload map[string]any) {
			a.triggerScreenShare()
		}},
		{bridge.ChanShareAnswer, func(senderID string, payload map[string]any) {
			sdp, _ := payload["sdp"].(string)
			if err := a.shareMgr.HandleAnswer(sdp); err != nil {
				log.Printf("APP: share answer rejected: %v", err)
			}
		}},
	}
	for _, r := range reg {
		if err := a.bus.Handle(r.channel, r.h); err != nil {
			return err
		}
	}

	calls := []struct {
		channel string
		h       bridge.CallHandler
	}{
		{bridge.ChanGetShareStatus, func(senderID string, payload map[string]any) (any, error) {
			return a.shareMgr.Status(), nil
		}},
		{bridge.ChanGetShareStream, func(senderID string, payload map[string]any) (any, error) {
			st := a.shareMgr.Status()
			if !st.IsActive {
				return nil, share.ErrNotActive
			}
			return map[string]any{"sdp": a.currentOffer()}, nil
		}},
		{bridge.ChanGetShareScreen, func(senderID string, payload map[string]any) (any, error) {
			st := a.shareMgr.Status()
			if !st.IsActive {
				return nil, share.ErrNotActive
			}
			return map[string]any{"id": st.SourceID, "name": st.SourceName}, nil
		}},
	}
	for _, c := range calls {
		if err := a.bus.HandleCall(c.channel, c.h); err != nil {
			return err
		}
	}
	return nil
}

// triggerScreenShare runs one selection flow for the host window. An active
// share is stopped by a second trigger (toggle semantics, matching the
// in-page share button).
func (a *App) triggerScreenShare() {
	if a.shareMgr.Status().IsActive {
		log.Printf("APP: share trigger while active — stopping")
		a.shareMgr.Stop()
		return
	}

	sel := a.registry.Get(hostWindowID)
	if sel == nil {
		log.Printf("APP: no selector for window %q", hostWindowID)
		return
	}
	sel.Show(func(out selector.Outcome) {
		switch out.Kind {
		case selector.OutcomeSelected:
			a.startShare(*out.Source)
		case selector.OutcomeCancelled:
			a.bus.Send(bridge.ChanShareStatusChanged, map[string]any{
				"isActive":  false,
				"cancelled": true,
			})
		case selector.OutcomeFailed:
			log.Printf("APP: selection failed: %v", out.Err)
			a.bus.Send(bridge.ChanShareStatusChanged, map[string]any{
				"isActive": false,
				"failed":   true,
			})
		}
	})
}

func (a *App) startShare(src capture.Source) {
	offer, err := a.shareMgr.Start(src, a.config().Share)
	if err != nil {
		log.Printf("APP: share start failed: %v", err)
		a.bus.Send(bridge.ChanShareStatusChanged, map[string]any{
			"isActive": false,
			"failed":   true,
		})
		return
	}
	a.offerMu.Lock()
	a.offer = offer
	a.offerMu.Unlock()
	a.bus.Send(bridge.ChanShareSourceChosen, map[string]any{
		"sourceId":   src.ID,
		"sourceName": src.Name,
	})
}

func (a *App) currentOffer() string {
	a.offerMu.Lock()
	defer a.offerMu.Unlock()
	return a.offer
}

// ── Wails-bound API (host frontend) ──

// GetBridgeURL lets injected content scripts find the loopback bridge.
func (a *App) GetBridgeURL() string {
	return a.bridgeURL
}

// GetProductURL returns the remote application URL in effect.
func (a *App) GetProductURL() string {
	cfg := a.config()
	return cfg.ProductURL()
}

// GetStatus summarizes shell state for the launcher page.
func (a *App) GetStatus() map[string]string {
	st := a.shareMgr.Status()
	cfg := a.config()
	return map[string]string{
		"product":    cfg.Product.Name,
		"productURL": cfg.ProductURL(),
		"bridgeURL":  a.bridgeURL,
		"sharing":    fmt.Sprintf("%v", st.IsActive),
		"sourceName": st.SourceName,
	}
}

// OpenPicker starts a selection flow directly. Debug entry point; the
// normal path is the trigger-screen-share channel.
func (a *App) OpenPicker() {
	a.triggerScreenShare()
}

// SetUnreadCount mirrors the product's unread badge onto the tray tooltip
// and rebroadcasts it for any listening surface.
func (a *App) SetUnreadCount(count int) {
	if a.trayIcon != nil {
		tip := a.productTitle()
		if count > 0 {
			tip = fmt.Sprintf("%s — %d unread", tip, count)
		}
		a.trayIcon.SetTooltip(tip)
	}
	a.bus.Send(bridge.ChanNotificationCount, map[string]any{"count": count})
}

// RecentAuditEvents exposes the boundary audit tail for the status page.
func (a *App) RecentAuditEvents(n int) ([]audit.Event, error) {
	if a.auditLog == nil {
		return nil, nil
	}
	return a.auditLog.Recent(n)
}

// ── Config hot reload ──

func (a *App) watchConfig() {
	err := config.Watch(a.ctx, a.cfgPath, func(cfg config.Config) {
		old := a.config()
		a.setConfig(cfg)
		if cfg.ProductURL() != old.ProductURL() {
			a.navigate()
		}
		if cfg.Window.Zoom != old.Window.Zoom {
			a.applyZoom(cfg.Window.Zoom)
		}
	})
	if err != nil {
		log.Printf("APP: config watch: %v", err)
	}
}

// payloadFlow pulls the flow id every picker frame carries for routing.
func payloadFlow(payload map[string]any) string {
	flow, _ := payload["flow"].(string)
	return flow
}

// ── Picker popup ──

// pickerWindow opens the picker page, served by the loopback bridge server,
// in the system browser. The page reports back over /ws; closing the tab
// without choosing counts as implicit cancellation when the socket drops.
type pickerWindow struct {
	app *App
}

func (w *pickerWindow) Open(flowID string) error {
	url := fmt.Sprintf("%s/picker.html?flow=%s", w.app.bridgeURL, flowID)
	runtime.BrowserOpenURL(w.app.ctx, url)
	return nil
}

func (w *pickerWindow) Focus() {
	// No handle on the external window. The surface raises the page over the
	// picker-focus channel instead; nothing to do natively.
}

func (w *pickerWindow) Close() {
	// The page closes itself after reporting its result, and the socket
	// teardown covers shutdown. No handle to force-close an external tab.
}
