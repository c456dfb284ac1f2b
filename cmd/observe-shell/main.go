// Command observe-shell edits an observed document interactively.
//
// The document and observation settings come from a YAML configuration
// file. Subscribers added with the sub command print every notification,
// and the log command shows the console history. With a bridge address
// configured, web views can stream DOM mutation records to the shell over
// WebSocket; they reach the subscribers as external changes.
//
// Usage:
//
//	observe-shell [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-capture string    Change capture file path (.olog)
//	-listen string     Bridge listen address, e.g. 127.0.0.1:8765
//	-advertise         Announce the bridge over mDNS
//	-log-level string  Log level: debug, info, warn, error
//
// Examples:
//
//	# Edit an empty document
//	observe-shell
//
//	# Edit a document and record every change for observe-log
//	observe-shell -config doc.yaml -capture session.olog
//
//	# Accept mutation records from web views found over mDNS
//	observe-shell -config doc.yaml -listen :0 -advertise
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyptix/observable-go/cmd/observe-shell/shell"
	"github.com/gyptix/observable-go/pkg/bridge"
	"github.com/gyptix/observable-go/pkg/config"
	"github.com/gyptix/observable-go/pkg/consolelog"
	"github.com/gyptix/observable-go/pkg/discovery"
	"github.com/gyptix/observable-go/pkg/log"
	"github.com/gyptix/observable-go/pkg/observable"
)

// DefaultBridgePath is the WebSocket path used when none is configured.
const DefaultBridgePath = "/mutations"

// Flags holds the command-line flags. Set flags override the file.
type Flags struct {
	ConfigFile string
	Capture    string
	Listen     string
	Advertise  bool
	LogLevel   string
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Capture, "capture", "", "Change capture file path (.olog)")
	flag.StringVar(&flags.Listen, "listen", "", "Bridge listen address")
	flag.BoolVar(&flags.Advertise, "advertise", false, "Announce the bridge over mDNS")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if flags.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	if flags.Capture != "" {
		cfg.Capture = flags.Capture
	}
	if flags.Listen != "" {
		cfg.Bridge.Listen = flags.Listen
	}
	if flags.Advertise {
		cfg.Bridge.Advertise = true
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if cfg.Bridge.Path == "" {
		cfg.Bridge.Path = DefaultBridgePath
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	// Diagnostics go to the console log so they do not break the prompt.
	console := consolelog.New(consolelog.Config{Capacity: cfg.Console.Capacity})
	logger := slog.New(consolelog.NewHandler(console, &slog.HandlerOptions{Level: level}))

	opts := []observable.Option{observable.WithLogger(logger)}
	if cfg.Capture != "" {
		fileLogger, err := log.NewFileLogger(cfg.Capture)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer fileLogger.Close()
		opts = append(opts, observable.WithCapture(log.NewMultiLogger(
			fileLogger,
			log.NewSlogAdapter(logger),
		)))
	}

	obs, err := cfg.Observation(opts...)
	if err != nil {
		return err
	}

	sh, err := shell.New(shell.Config{
		Observation: obs,
		Console:     console,
		Bridge:      cfg.Bridge.Listen != "",
		Logger:      logger,
		Out:         os.Stdout,
	})
	if err != nil {
		return err
	}
	defer sh.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Bridge.Listen != "" {
		stop, err := serveBridge(ctx, cfg.Bridge, sh, obs, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return sh.Run(ctx, cancel)
}

// serveBridge starts the bridge HTTP server and, if configured, announces
// it over mDNS. The returned function stops both.
func serveBridge(ctx context.Context, bc config.BridgeConfig, sh *shell.Shell, obs *observable.Observation, logger *slog.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", bc.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", bc.Listen, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle(bc.Path, sh.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("bridge server failed", "error", err)
		}
	}()
	fmt.Printf("Bridge listening on ws://%s%s\n", ln.Addr(), bc.Path)

	var adv *discovery.MDNSAdvertiser
	if bc.Advertise {
		adv = discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		info := &discovery.BridgeInfo{
			ObservationID: obs.ID().String(),
			Port:          uint16(port),
			Path:          bc.Path,
			Formats:       []string{bridge.FormatCBOR.String(), bridge.FormatJSON.String()},
			Name:          bc.Name,
		}
		if err := adv.Advertise(ctx, info); err != nil {
			logger.Warn("failed to advertise bridge", "error", err)
			adv = nil
		} else {
			fmt.Printf("Advertising %s.%s.%s\n", info.InstanceName(), discovery.ServiceType, discovery.Domain)
		}
	}

	return func() {
		if adv != nil {
			_ = adv.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
