// Package main is the entry point for the editor server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dshills/editorsrv/internal/config"
	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/obs"
	"github.com/dshills/editorsrv/internal/wsserver"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

type cliOptions struct {
	ConfigPath string
	ListenAddr string
	Debug      bool
	LogLevel   string
	NoBrowser  bool
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	log := obs.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))

	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to compile language table: %v\n", err)
		return 1
	}

	srvOpts := []wsserver.Option{
		wsserver.WithLogger(log),
		wsserver.WithURLPrefix(cfg.URLPrefix),
		wsserver.WithMessageTimeout(cfg.MessageTimeout),
		wsserver.WithFilesystem(osFilesystem{}),
	}
	if !opts.NoBrowser {
		srvOpts = append(srvOpts, wsserver.WithBrowserOpener(systemBrowserOpener{}))
	}

	srv := wsserver.New(langs, srvOpts...)

	mux := http.NewServeMux()
	srv.Routes(mux)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("editorsrv: listening", "addr", cfg.ListenAddr, "urlPrefix", cfg.URLPrefix)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("editorsrv: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
			return 1
		}
		return 0
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.ListenAddr, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&opts.ListenAddr, "l", "", "Listen address (shorthand)")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug mode")
	flag.BoolVar(&opts.Debug, "d", false, "Enable debug mode (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.NoBrowser, "no-browser", false, "Never open a local browser for non-self-hosted sessions")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "editorsrv - live editing session server for IDE and browser clients\n\n")
		fmt.Fprintf(os.Stderr, "Usage: editorsrv [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("editorsrv %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.Debug && opts.LogLevel == "" {
		opts.LogLevel = "debug"
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// osFilesystem satisfies session.Filesystem by reading directly from disk,
// used when an HTTP load request cannot be answered by the IDE itself.
type osFilesystem struct{}

func (osFilesystem) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// systemBrowserOpener satisfies session.BrowserOpener by shelling out to the
// host's default URL opener.
type systemBrowserOpener struct{}

func (systemBrowserOpener) OpenURL(ctx context.Context, url string) error {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name, args = "open", []string{url}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		name, args = "xdg-open", []string{url}
	}
	return exec.CommandContext(ctx, name, args...).Start()
}
