// main.go
package main

import (
	"embed"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"

	"github.com/0xfcmartins/ms-wrappers/internal/config"
	"github.com/0xfcmartins/ms-wrappers/internal/logbuf"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed build/appicon.png
var appIcon []byte

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
	cfgFlag  = flag.String("config", "", "Path to config file (default: <config-dir>/ms-wrappers/wrapper.json)")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

var productTitles = map[string]string{
	"teams":   "Microsoft Teams",
	"outlook": "Microsoft Outlook",
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ms-wrappers v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	cfgPath := *cfgFlag
	if cfgPath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			log.Fatalf("Cannot resolve config directory: %v", err)
		}
		cfgPath = filepath.Join(base, "ms-wrappers", "wrapper.json")
	}

	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if created {
		log.Printf("Wrote default config to %s", cfgPath)
	}

	// Optional product override: `ms-wrappers outlook` wraps Outlook no
	// matter what the config file says.
	if args := flag.Args(); len(args) > 0 {
		name := args[0]
		if _, ok := productTitles[name]; !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown product '%s'\n\n", name)
			showUsage()
			os.Exit(1)
		}
		cfg.Product.Name = name
	}

	// Capture log output into the ring buffer served at /logs while still
	// writing to stderr.
	buf := logbuf.New(500)
	log.SetOutput(io.MultiWriter(os.Stderr, buf))

	runDesktopApp(cfgPath, cfg, buf)
}

func runDesktopApp(cfgPath string, cfg config.Config, buf *logbuf.Buffer) {
	app := NewApp(cfgPath, cfg, buf, appIcon)

	err := wails.Run(&options.App{
		Title:  productTitles[cfg.Product.Name],
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,

		StartHidden: cfg.Window.StartMinimized,

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		Linux: &linux.Options{
			Icon: appIcon,
		},

		OnStartup:     app.startup,
		OnShutdown:    app.shutdown,
		OnBeforeClose: app.beforeClose,
		Bind:          []any{app},
	})
	if err != nil {
		log.Fatal(err)
	}
}

func showUsage() {
	fmt.Println("ms-wrappers - Desktop shells for Microsoft web apps")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ms-wrappers            Run with the product from the config file")
	fmt.Println("  ms-wrappers teams      Wrap Microsoft Teams")
	fmt.Println("  ms-wrappers outlook    Wrap Microsoft Outlook")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version information")
	fmt.Println("  -config   Path to the config file")
	fmt.Println()
	fmt.Println("The config file is created with defaults on first run.")
}
