package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mindvswild/api/internal/auth"
	"github.com/mindvswild/api/internal/config"
	"github.com/mindvswild/api/internal/gateway"
	"github.com/mindvswild/api/internal/quiz"
	"github.com/mindvswild/api/internal/relay"
	"github.com/mindvswild/api/internal/rooms"
	"github.com/mindvswild/api/internal/trivia"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("connected to database")

	membership := rooms.NewRepository(db)
	resolver := auth.NewJWTResolver(cfg.Auth.JWTSecret)
	questions := trivia.NewClient(cfg.Trivia.BaseURL)

	hub := gateway.NewHub(gateway.DefaultConnConfig())

	sinks := quiz.Fanout{hub}
	var publisher *relay.Publisher
	if cfg.NATS.Enabled {
		relayCfg := relay.DefaultConfig()
		relayCfg.URL = cfg.NATS.URL
		publisher, err = relay.NewPublisher(relayCfg)
		if err != nil {
			return fmt.Errorf("connect event relay: %w", err)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info().Str("url", cfg.NATS.URL).Msg("event relay enabled")
	}

	game := quiz.NewService(quiz.Config{
		Registry:    quiz.NewRegistry(),
		Broadcaster: sinks,
		Source:      questions,
		Members:     membership,
	})

	mux := http.NewServeMux()
	gateway.NewHandler(hub, resolver, membership, game).RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Debug().Err(err).Msg("failed to write health check response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: c.Handler(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
