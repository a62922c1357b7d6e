//go:build linux

package capture

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/vova616/screenshot"
	xdraw "golang.org/x/image/draw"
)

// thumbWidth caps the catalog thumbnail width; height follows the aspect
// ratio. Large thumbnails bloat the data URLs pushed to the picker.
const thumbWidth = 320

// PlatformFetcher enumerates displays via the mediadevices screen driver
// (X11) and decorates each entry with a downscaled screenshot thumbnail.
// Window-level enumeration is not provided by the driver, so the catalog
// contains screens only on this platform.
type PlatformFetcher struct{}

func NewPlatformFetcher() *PlatformFetcher { return &PlatformFetcher{} }

func (f *PlatformFetcher) FetchSources(ctx context.Context) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture: fetch sources: %w", err)
	}

	var screens []mediadevices.MediaDeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind == mediadevices.VideoInput && d.DeviceType == driver.Screen {
			screens = append(screens, d)
		}
	}
	if len(screens) == 0 {
		// No displays visible to the driver — a valid empty catalog, not a
		// failure (headless session, permission denied by the display server).
		log.Printf("CAPTURE: no screen devices enumerated")
		return []Source{}, nil
	}

	// One grab of the primary display serves as the thumbnail for its entry.
	// A grab failure degrades to a thumbnail-less catalog.
	var primaryThumb image.Image
	if shot, err := screenshot.CaptureScreen(); err != nil {
		log.Printf("CAPTURE: screenshot grab: %v", err)
	} else {
		primaryThumb = scaleThumb(shot, thumbWidth)
	}

	sources := make([]Source, 0, len(screens))
	for i, d := range screens {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture: fetch sources: %w", err)
		}
		name := d.Label
		if name == "" {
			name = fmt.Sprintf("Screen %d", i+1)
		}
		src := Source{
			ID:        fmt.Sprintf("%s%d", ScreenPrefix, i),
			Name:      name,
			DisplayID: d.DeviceID,
		}
		if i == 0 {
			src.Thumbnail = primaryThumb
		}
		sources = append(sources, src)
	}
	log.Printf("CAPTURE: enumerated %d screen source(s)", len(sources))
	return sources, nil
}

// scaleThumb downscales img to at most maxW pixels wide, preserving aspect.
func scaleThumb(img image.Image, maxW int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW || b.Dx() == 0 {
		return img
	}
	h := b.Dy() * maxW / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxW, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
