package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pollevbot/backend/internal/bot"
	"github.com/pollevbot/backend/internal/config"
	"github.com/pollevbot/backend/internal/mock"
	"github.com/pollevbot/backend/internal/observability"
	"github.com/pollevbot/backend/internal/pollev"
	"github.com/pollevbot/backend/internal/session"
	"github.com/pollevbot/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use a simulated polling service")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	logLevel := flag.String("log-level", "", "Override log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := observability.NewLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()

	registry := session.NewRegistry()
	broadcaster := ws.NewBroadcaster(registry, cfg.Server.StreamInterval, log)
	defer broadcaster.Close()

	var factory ws.CapabilityFactory
	if *mockMode {
		log.Info().Msg("starting in mock mode (simulated polling service)")
		factory = func(session.Config) bot.Capability {
			return &mock.Capability{}
		}
	} else {
		factory = func(session.Config) bot.Capability {
			return pollev.New(cfg.PollEv, log)
		}
	}

	server := ws.NewServer(cfg, registry, broadcaster, metrics, log, factory)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down, stopping all sessions")
		for _, h := range registry.Handles() {
			h.Runner.Stop()
			registry.Remove(h.Token)
		}
		os.Exit(0)
	}()

	log.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("listening")
	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
