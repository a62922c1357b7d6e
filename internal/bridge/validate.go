package bridge

// Keys that allow prototype pollution when a payload is replayed into a JS
// context. They are stripped from every inbound payload regardless of the
// channel verdict — the webview runs with relaxed isolation, so the boundary
// compensates here.
var pollutionKeys = []string{"__proto__", "constructor", "prototype"}

// Validate reports whether channel may cross the trust boundary. When
// payload is non-nil its polluting keys are removed in place, recursively,
// even if the channel is unknown; the boolean verdict depends only on the
// allowlist membership. Callers log and drop on false — Validate never
// raises anything into web content.
func Validate(channel string, payload map[string]any) bool {
	if payload != nil {
		SanitizePayload(payload)
	}
	return Allowed(channel)
}

// SanitizePayload strips __proto__/constructor/prototype keys from m and
// from any nested maps or slices, mutating m in place.
func SanitizePayload(m map[string]any) {
	for _, k := range pollutionKeys {
		delete(m, k)
	}
	for _, v := range m {
		sanitizeValue(v)
	}
}

func sanitizeValue(v any) {
	switch t := v.(type) {
	case map[string]any:
		SanitizePayload(t)
	case []any:
		for _, e := range t {
			sanitizeValue(e)
		}
	}
}
