package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/0xfcmartins/ms-wrappers/internal/util"
)

type Config struct {
	Product Product `json:"product"`
	Window  Window  `json:"window"`
	Paths   Paths   `json:"paths"`
	Limits  Limits  `json:"limits"`
	Share   Share   `json:"share"`
	Tray    Tray    `json:"tray"`
}

type Product struct {
	// Name selects a built-in profile: "teams" or "outlook".
	Name string `json:"name"`

	// URL overrides the profile's default remote application URL.
	// Must be https when set.
	URL string `json:"url"`
}

type Window struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Zoom           float64 `json:"zoom"`
	Spellcheck     bool    `json:"spellcheck"`
	StartMinimized bool    `json:"start_minimized"`
}

type Paths struct {
	// DataDir holds the audit database and other shell state.
	// Relative to the config file's directory.
	DataDir string `json:"data_dir"`
}

type Limits struct {
	// PerChannel caps messages per sender per channel inside one window.
	PerChannel int `json:"per_channel"`
	// Global caps messages across all senders inside one window. 0 = off.
	Global int `json:"global"`
	// WindowSeconds is the sliding-window size for both caps.
	WindowSeconds int `json:"window_seconds"`
}

type Share struct {
	FrameRate int `json:"frame_rate"` // capture frame rate for the share stream
	BitRate   int `json:"bit_rate"`   // VP8 target bitrate, bits/sec
}

type Tray struct {
	Enabled     bool `json:"enabled"`
	CloseToTray bool `json:"close_to_tray"` // window close hides instead of quitting
}

// Built-in product URLs. Product.URL overrides.
var productURLs = map[string]string{
	"teams":   "https://teams.microsoft.com",
	"outlook": "https://outlook.office.com/mail",
}

func Default() Config {
	return Config{
		Product: Product{Name: "teams"},
		Window: Window{
			Width:      1280,
			Height:     860,
			Zoom:       1.0,
			Spellcheck: true,
		},
		Paths: Paths{DataDir: "data"},
		Limits: Limits{
			PerChannel:    100,
			Global:        2000,
			WindowSeconds: 60,
		},
		Share: Share{
			FrameRate: 15,
			BitRate:   1_500_000,
		},
		Tray: Tray{Enabled: true, CloseToTray: true},
	}
}

// ProductURL resolves the remote application URL for this config.
func (c *Config) ProductURL() string {
	if c.Product.URL != "" {
		return c.Product.URL
	}
	return productURLs[c.Product.Name]
}

func (c *Config) Validate() error {
	// Product
	if _, ok := productURLs[c.Product.Name]; !ok {
		return fmt.Errorf("product.name must be one of: teams, outlook (got %q)", c.Product.Name)
	}
	if raw := strings.TrimSpace(c.Product.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("product.url: %v", err)
		}
		if u.Scheme != "https" {
			return errors.New("product.url scheme must be https")
		}
		if u.Host == "" {
			return errors.New("product.url missing host")
		}
	}

	// Window
	if c.Window.Width < 400 || c.Window.Width > 10000 {
		return errors.New("window.width must be 400..10000")
	}
	if c.Window.Height < 300 || c.Window.Height > 10000 {
		return errors.New("window.height must be 300..10000")
	}
	if c.Window.Zoom < 0.25 || c.Window.Zoom > 3.0 {
		return errors.New("window.zoom must be 0.25..3.0")
	}

	// Paths
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}

	// Limits
	if c.Limits.PerChannel <= 0 {
		return errors.New("limits.per_channel must be > 0")
	}
	if c.Limits.Global < 0 {
		return errors.New("limits.global must be >= 0")
	}
	if c.Limits.WindowSeconds < 1 || c.Limits.WindowSeconds > 3600 {
		return errors.New("limits.window_seconds must be 1..3600")
	}

	// Share
	if c.Share.FrameRate < 1 || c.Share.FrameRate > 60 {
		return errors.New("share.frame_rate must be 1..60")
	}
	if c.Share.BitRate < 100_000 || c.Share.BitRate > 20_000_000 {
		return errors.New("share.bit_rate must be 100000..20000000")
	}

	return nil
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadPartial reads a config file without validation. Used where a best
// effort view is better than an error (status display, watcher recovery).
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Ensure loads the config at path, creating it with defaults when missing.
// The second return reports whether the file was created.
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, false, err
		}
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, false, fmt.Errorf("write default config: %w", err)
		}
		return cfg, true, nil
	}
	cfg, err := Load(path)
	return cfg, false, err
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	return util.WriteJSONFile(path, cfg)
}
