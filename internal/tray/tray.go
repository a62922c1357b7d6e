// Package tray runs the system tray icon and menu. The tray keeps the shell
// reachable while the main window is hidden (close-to-tray).
package tray

import (
	"log"

	"github.com/energye/systray"
)

// Options configures the tray icon and wires menu actions back to the shell.
type Options struct {
	Icon    []byte // PNG or ICO bytes
	Title   string
	Tooltip string

	OnShow func() // "Show <product>" menu item and icon click
	OnQuit func() // "Quit" menu item
}

// Tray is a handle to the running tray icon.
type Tray struct {
	opts Options
}

// Start registers the tray icon on the platform's notification area.
// systray.Run blocks, so it is started on its own goroutine; menu callbacks
// arrive on systray's internal loop.
func Start(opts Options) *Tray {
	t := &Tray{opts: opts}
	go systray.Run(t.onReady, t.onExit)
	return t
}

func (t *Tray) onReady() {
	if len(t.opts.Icon) > 0 {
		systray.SetIcon(t.opts.Icon)
	}
	if t.opts.Title != "" {
		systray.SetTitle(t.opts.Title)
	}
	systray.SetTooltip(t.opts.Tooltip)

	show := systray.AddMenuItem("Show window", "Restore the main window")
	show.Click(func() {
		if t.opts.OnShow != nil {
			t.opts.OnShow()
		}
	})

	systray.AddSeparator()

	quit := systray.AddMenuItem("Quit", "Quit the application")
	quit.Click(func() {
		if t.opts.OnQuit != nil {
			t.opts.OnQuit()
		}
	})

	// Left click restores the window directly.
	systray.SetOnClick(func(menu systray.IMenu) {
		if t.opts.OnShow != nil {
			t.opts.OnShow()
		}
	})

	log.Printf("TRAY: icon ready (%s)", t.opts.Tooltip)
}

func (t *Tray) onExit() {
	log.Printf("TRAY: exited")
}

// SetTooltip updates the hover text, used to reflect sharing state.
func (t *Tray) SetTooltip(text string) {
	systray.SetTooltip(text)
}

// Quit removes the icon and stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}
