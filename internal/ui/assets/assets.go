// internal/ui/assets.go

package assets

import (
	"embed"
	"net/http"
)

// Embed the picker page served by the bridge server under /picker/.
//
//go:embed picker.html picker.css picker.js
var fs embed.FS

func Handler() http.Handler {
	return http.FileServer(http.FS(fs))
}
