package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/mailgun/holster/v4/clock"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/delivery"
	"github.com/mattjoyce/hookgate/internal/dispatch"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/replay"
	"github.com/mattjoyce/hookgate/internal/signature"
	"github.com/mattjoyce/hookgate/internal/storage"
	"github.com/mattjoyce/hookgate/internal/transcript"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

const version = "0.2.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "system":
		return runSystemNoun(rest)
	case "config":
		return runConfigNoun(rest)
	case "sign":
		return runSign(rest)

	// Root alias
	case "start":
		return runStart(rest)
	case "version":
		fmt.Printf("hookgate version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `hookgate - signed webhook gateway for the voice agent

Usage:
  hookgate <noun> <action> [flags]

System Commands:
  system start      Start the webhook server and dispatcher in foreground

Config Commands:
  config check      Load and validate configuration (including secrets)

Tools:
  sign              Print a signature header for a request body

General:
  version           Show version information
  help              Show this help message

Configuration is read from --config, then $HOOKGATE_CONFIG. With neither,
defaults apply and the secret comes from $WEBHOOK_SECRET.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hookgate system <action>\nActions: start")
		return 1
	}
	if isHelpToken(args[0]) {
		fmt.Println("Usage: hookgate system <action>\nActions: start")
		return 0
	}
	switch args[0] {
	case "start":
		return runStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hookgate config <action>\nActions: check")
		return 1
	}
	if isHelpToken(args[0]) {
		fmt.Println("Usage: hookgate config <action>\nActions: check")
		return 0
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

// resolveConfigPath prefers the flag, then $HOOKGATE_CONFIG. Empty means defaults.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("HOOKGATE_CONFIG")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}
	if _, err := webhook.FromGlobalConfig(cfg.Webhooks); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration OK: %d endpoint(s), listen %s, replay guard %s\n",
		len(cfg.Webhooks.Endpoints), cfg.Webhooks.Listen, replayMode(cfg.Replay))
	for _, ep := range cfg.Webhooks.Endpoints {
		fmt.Printf("  POST %s (header %s, tolerance %s)\n", ep.Path, ep.SignatureHeader, ep.Tolerance)
	}
	return 0
}

func replayMode(rc config.ReplayConfig) string {
	if !rc.Enabled {
		return "off"
	}
	return rc.Store
}

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secretEnv := fs.String("secret-env", config.DefaultSecretEnv, "Environment variable holding the secret")
	bodyFile := fs.String("body-file", "-", "File with the exact request body (- for stdin)")
	timestamp := fs.Int64("timestamp", 0, "Unix seconds to sign with (default now)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	secret := os.Getenv(*secretEnv)
	if secret == "" {
		fmt.Fprintf(os.Stderr, "$%s is empty or unset\n", *secretEnv)
		return 1
	}

	var body []byte
	var err error
	if *bodyFile == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*bodyFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return 1
	}

	ts := *timestamp
	if ts == 0 {
		ts = clock.Now().Unix()
	}
	sig := signature.Sign(secret, strconv.FormatInt(ts, 10), body)
	fmt.Println(signature.FormatHeader(ts, sig))
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := resolveConfigPath(*configPath)

	// A missing secret fails here, before anything listens.
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("hookgate starting", "version", version, "config", path)

	whCfg, err := webhook.FromGlobalConfig(cfg.Webhooks)
	if err != nil {
		logger.Error("invalid webhook configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	queue := delivery.New(db)
	handler := transcript.NewHandler(transcript.NewStore(db))

	var opts []webhook.Option
	var guard replay.Guard
	if cfg.Replay.Enabled {
		switch cfg.Replay.Store {
		case config.ReplayStoreMemory:
			guard = replay.NewMemoryGuard()
		default:
			guard = replay.NewSQLiteGuard(db)
		}
		opts = append(opts, webhook.WithReplayGuard(guard))
		logger.Info("replay guard enabled", "store", cfg.Replay.Store)
	}

	server, err := webhook.New(whCfg, queue, log.WithComponent("webhook"), opts...)
	if err != nil {
		logger.Error("failed to build webhook server", "error", err)
		return 1
	}
	disp := dispatch.New(queue, handler, dispatch.Options{
		PollInterval:  cfg.Dispatch.PollInterval,
		PruneInterval: cfg.Dispatch.PruneInterval,
		Guard:         guard,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := disp.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		wg.Wait()
		return 0
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		wg.Wait()
		return 1
	}
}
