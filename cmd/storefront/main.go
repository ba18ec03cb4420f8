package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/config"
	"github.com/rosegold-gallery/storefront/internal/db"
	"github.com/rosegold-gallery/storefront/internal/events"
	"github.com/rosegold-gallery/storefront/internal/handler"
	"github.com/rosegold-gallery/storefront/internal/order"
	"github.com/rosegold-gallery/storefront/internal/transport"
	"github.com/rosegold-gallery/storefront/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "storefront").Logger()

	log.Info().Msg("Storefront starting...")

	cfg, err := config.New(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var publisher order.EventPublisher
	if cfg.AMQP.URL != "" {
		p, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message broker")
		}
		defer p.Close()
		publisher = p
	} else {
		log.Info().Msg("RABBITMQ_URL not set, order events disabled")
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

	userRepo := user.NewRepository(database.Pool)
	userSvc := user.NewService(userRepo, tokens, cfg.Auth.TokenTTL)

	orderRepo := order.NewRepository(database.Pool)
	orderSvc := order.NewService(orderRepo, publisher)

	router := transport.NewRouter(tokens,
		handler.NewAuthHandler(userSvc),
		handler.NewOrderHandler(orderSvc),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
