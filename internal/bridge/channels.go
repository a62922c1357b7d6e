// Package bridge implements the trust boundary between the privileged shell
// and the web content running inside the webview (remote Microsoft apps and
// the local picker surface). Every message crossing the boundary, in either
// direction, goes through the channel allowlist, payload sanitizer and
// per-sender rate limiter before any handler runs.
package bridge

// ── Channel constants ─────────────────────────────────────────────────────────
// Single source of truth for all bridge channel names used across the shell.
// Mirrored in internal/ui/assets/picker.js — keep both in sync.
const (
	// Picker surface lifecycle — picker window ↔ shell.
	ChanPickerReady        = "picker-ready"         // picker → shell: surface finished initializing
	ChanSourcesAvailable   = "sources-available"    // shell → picker: one-shot catalog delivery
	ChanSourceSelected     = "source-selected"      // picker → shell: confirmed choice
	ChanSelectionCancelled = "selection-cancelled"  // picker → shell: explicit cancellation
	ChanPickerFocus        = "picker-focus"         // shell → picker: raise the pending surface

	// Screen-share flow — host content ↔ shell.
	ChanTriggerScreenShare = "trigger-screen-share"            // content → shell: request a new flow
	ChanShareStatusChanged = "screen-sharing-status-changed"   // shell → content: flow outcome / state
	ChanShareSourceChosen  = "screen-sharing-source-selected"  // shell → content: selected source metadata
	ChanShareAnswer        = "screen-share-answer"             // content → shell: SDP answer for loopback stream

	// Request/response compatibility queries — host content → shell.
	ChanGetShareStatus = "get-screen-sharing-status"
	ChanGetShareStream = "get-screen-share-stream"
	ChanGetShareScreen = "get-screen-share-screen"

	// Shell notifications — shell → content (tray badge sync).
	ChanNotificationCount = "notification-count-changed"
)

// allowlist is the process-wide set of channels permitted to cross the trust
// boundary. Initialized once, never mutated at runtime: adding a channel is
// a code change here, not an API call.
var allowlist = map[string]struct{}{
	ChanPickerReady:        {},
	ChanSourcesAvailable:   {},
	ChanSourceSelected:     {},
	ChanSelectionCancelled: {},
	ChanPickerFocus:        {},
	ChanTriggerScreenShare: {},
	ChanShareStatusChanged: {},
	ChanShareSourceChosen:  {},
	ChanShareAnswer:        {},
	ChanGetShareStatus:     {},
	ChanGetShareStream:     {},
	ChanGetShareScreen:     {},
	ChanNotificationCount:  {},
}

// Allowed reports whether channel is a member of the static allowlist.
func Allowed(channel string) bool {
	_, ok := allowlist[channel]
	return ok
}

// Channels returns a copy of all allowlisted channel names. Used by tests
// and the status endpoint; the underlying set is never exposed.
func Channels() []string {
	out := make([]string, 0, len(allowlist))
	for ch := range allowlist {
		out = append(out, ch)
	}
	return out
}
