package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/api"
	"github.com/homectl/control-proxy/internal/assist"
	"github.com/homectl/control-proxy/internal/config"
	"github.com/homectl/control-proxy/internal/control"
	"github.com/homectl/control-proxy/internal/events"
	"github.com/homectl/control-proxy/internal/hub"
	"github.com/homectl/control-proxy/internal/ratelimit"
	"github.com/homectl/control-proxy/internal/store"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config/control-proxy.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// External collaborators
	st := store.NewClient(cfg.Store.URL, cfg.Store.Secret, cfg.Store.Timeout.Std())
	hubClient := hub.NewClient(cfg.Hub.URL, cfg.Hub.Token, cfg.Hub.Timeout.Std())

	var assistClient *assist.Client
	if cfg.Assist.APIKey != "" {
		assistClient = assist.NewClient(cfg.Assist.URL, cfg.Assist.APIKey, cfg.Assist.Model, cfg.Assist.Preamble, cfg.Assist.Timeout.Std())
	} else {
		log.Info().Msg("Assist API key not configured, assist endpoint disabled")
	}

	// Optional audit event feed
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("control-proxy"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval.Std()),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without audit feed")
			nc = nil
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
		}
	} else {
		log.Info().Msg("NATS not configured, audit feed disabled")
	}

	// Control pipeline
	limiter := ratelimit.New(cfg.RateLimit.ControlPerMin, cfg.RateLimit.Window.Std())
	controller := control.New(st, hubClient, limiter, events.NewPublisher(nc))

	// REST API server
	server := api.NewServer(cfg, controller, st, assistClient)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		errCh <- server.ListenAndServe(addr)
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case err := <-errCh:
		log.Fatal().Err(err).Msg("REST API server failed")
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	log.Info().Msg("Control proxy stopped")
}
