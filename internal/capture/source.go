// Package capture models capturable screens and windows and fetches the
// source catalog from the platform. A Source carries the native capture
// handle (thumbnail image, display id) and never crosses the trust
// boundary; Serializable is its boundary-safe projection.
package capture

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"log"
	"strings"
)

// ID prefixes encode the source kind. The picker page's screens/windows
// tabs split on the prefix, and share.Manager.Start refuses non-screen
// sources via IsScreen.
const (
	ScreenPrefix = "screen:"
	WindowPrefix = "window:"
)

// Source is one capturable screen or application window. Created fresh on
// every catalog fetch, owned by a single selection flow, discarded when the
// flow resolves.
type Source struct {
	ID        string // unique within one fetch, kind-prefixed
	Name      string // human-readable, not unique
	DisplayID string // platform display/device identifier
	Thumbnail image.Image
	AppIcon   image.Image
}

// IsScreen reports whether the source is a whole display rather than a window.
func (s *Source) IsScreen() bool { return strings.HasPrefix(s.ID, ScreenPrefix) }

// Serializable is the boundary-safe projection of a Source. The thumbnail
// is re-encoded to a PNG data URL on the way out and deliberately dropped
// on the return trip — an inbound Serializable is only ever trusted as a
// lookup key back into the flow's own catalog.
type Serializable struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DisplayID string `json:"displayId,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	AppIcon   string `json:"appIcon,omitempty"`
}

// Serializable builds the boundary projection of s.
func (s *Source) Serializable() Serializable {
	return Serializable{
		ID:        s.ID,
		Name:      s.Name,
		DisplayID: s.DisplayID,
		Thumbnail: encodeDataURL(s.Thumbnail),
		AppIcon:   encodeDataURL(s.AppIcon),
	}
}

// SerializeCatalog projects a whole catalog for delivery to the picker.
func SerializeCatalog(sources []Source) []Serializable {
	out := make([]Serializable, len(sources))
	for i := range sources {
		out[i] = sources[i].Serializable()
	}
	return out
}

// encodeDataURL renders img as a "data:image/png;base64," URL, or "" when
// img is nil or encoding fails (a missing thumbnail is not an error).
func encodeDataURL(img image.Image) string {
	if img == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Printf("CAPTURE: thumbnail encode: %v", err)
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
