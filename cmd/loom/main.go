// ABOUTME: Entry point for loom, a Matrix conversation bridge to a CLI agent
// ABOUTME: Wires store, agent channel, orchestrator, bridge, and sidecars

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/bridge"
	"github.com/loomhq/loom/internal/chat"
	"github.com/loomhq/loom/internal/cmdlistener"
	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/conversation"
	"github.com/loomhq/loom/internal/httpapi"
	"github.com/loomhq/loom/internal/scheduler"
	"github.com/loomhq/loom/internal/skills"
	"github.com/loomhq/loom/internal/store"
	"github.com/loomhq/loom/internal/voice"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

const banner = `
 _
| | ___   ___  _ __ ___
| |/ _ \ / _ \| '_ ' _ \
| | (_) | (_) | | | | | |
|_|\___/ \___/|_| |_| |_|
`

// getConfigPath returns the path to the config file.
// Priority: LOOM_CONFIG env var > XDG_CONFIG_HOME/loom/loom.yaml > ~/.config/loom/loom.yaml
func getConfigPath() string {
	if envPath := os.Getenv("LOOM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "loom.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "loom", "loom.yaml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env is optional; config resolution expands ${VAR} references.
	_ = godotenv.Load()

	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("Agent:      %s\n", cfg.Agent.Binary)
	if cfg.HTTP.Addr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:       %s\n", cfg.HTTP.Addr)
	}
	fmt.Println()

	logger.Info("starting loom",
		"config", configPath,
		"homeserver", cfg.Matrix.Homeserver,
		"agent", cfg.Agent.Binary,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}
	surface := chat.NewMatrix(client, logger)

	channel := agent.NewCLIChannel(cfg.Agent.Binary, cfg.Agent.Args, logger)

	var speech conversation.Speech
	if cfg.Voice.Enabled {
		speech = voice.New(voice.Options{
			BaseURL:         cfg.Voice.BaseURL,
			APIKey:          cfg.Voice.APIKey,
			TranscribeModel: cfg.Voice.TranscribeModel,
			SpeechModel:     cfg.Voice.SpeechModel,
			SpeechVoice:     cfg.Voice.SpeechVoice,
		}, logger)
	}

	var library *skills.Library
	if cfg.Skills.Path != "" {
		library, err = skills.Load(cfg.Skills.Path)
		if err != nil {
			return fmt.Errorf("loading skill library: %w", err)
		}
		logger.Info("skill library loaded", "path", cfg.Skills.Path)
	}

	orch := conversation.NewOrchestrator(conversation.Options{
		Store:           st,
		Channel:         channel,
		Surface:         surface,
		Speech:          speech,
		Skills:          library,
		WorkingContext:  cfg.Agent.WorkingContext,
		ExchangeTimeout: cfg.Agent.Timeout,
		Logger:          logger,
	})

	br := bridge.New(bridge.Options{
		Client:        client,
		Handler:       orch,
		AllowedRooms:  cfg.Matrix.AllowedRooms,
		CommandPrefix: cfg.Bridge.CommandPrefix,
		VoiceReplies:  cfg.Voice.Enabled,
		Logger:        logger,
	})

	sched := scheduler.New(st, surface, cfg.Scheduler.Interval, logger)
	go sched.Run(ctx)

	if cfg.HTTP.Addr != "" {
		root := chi.NewRouter()
		root.Mount("/", httpapi.New(st, logger).Router())
		if cfg.Listener.Enabled {
			listener := cmdlistener.New(st, orch.Pending(), cfg.Listener.Token, logger)
			root.Handle("/ws/commands", listener)
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("http api listening", "addr", cfg.HTTP.Addr)
	}

	return br.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
