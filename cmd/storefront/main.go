package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/assistant"
	"github.com/vasiliy-maslov/buyproxy/internal/catalog"
	"github.com/vasiliy-maslov/buyproxy/internal/checkout"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
	"github.com/vasiliy-maslov/buyproxy/internal/db"
	httpHandler "github.com/vasiliy-maslov/buyproxy/internal/handler/http"
	"github.com/vasiliy-maslov/buyproxy/internal/inquiry"
	"github.com/vasiliy-maslov/buyproxy/internal/news"
	"github.com/vasiliy-maslov/buyproxy/internal/order"
	"github.com/vasiliy-maslov/buyproxy/internal/payment"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "storefront").Logger()

	log.Info().Msg("Storefront starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()
	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	pending, err := checkout.OpenPendingStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open pending checkout store")
	}
	defer pending.Close()

	productSvc := catalog.NewService(catalog.NewRepository(pg.Pool))
	orderSvc := order.NewService(order.NewRepository(pg.Pool))
	addressSvc := order.NewAddressService(order.NewAddressRepository(pg.Pool))
	stats := order.NewStatsReader(pg.SQLX())

	userSvc := user.NewService(
		user.NewRepository(pg.Pool),
		user.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL),
		user.NewSignInLimiter(12*time.Second, 5),
		user.NewMailer(cfg.Mail),
		cfg.App.PublicOrigin,
	)
	oauthClient := user.NewOAuthClient(cfg.OAuth, cfg.App.PublicOrigin)
	handshakes := user.NewHandshakes(cfg.OAuth.HandshakeTimeout)

	gateway := payment.NewGateway(cfg.Payment)
	if !gateway.Ready() {
		log.Warn().Msg("Payment gateway keys are not set; checkout will report not ready")
	}
	checkoutSvc := checkout.NewService(productSvc, orderSvc, gateway, pending, cfg.App.PublicOrigin, cfg.Payment.PendingTTL)

	newsSvc := news.NewService(cfg.News)
	assistantSvc := assistant.NewService(cfg.Assistant)
	inquirySvc := inquiry.NewService(inquiry.NewRepository(pg.Pool))

	productHandler := httpHandler.NewProductHandler(productSvc)
	router := httpHandler.NewRouter(userSvc,
		productHandler,
		httpHandler.NewAuthHandler(userSvc, oauthClient, handshakes, cfg.App.PublicOrigin),
		httpHandler.NewAccountHandler(userSvc, orderSvc, addressSvc),
		httpHandler.NewCheckoutHandler(checkoutSvc, userSvc),
		httpHandler.NewContentHandler(newsSvc, assistantSvc, inquirySvc),
		httpHandler.NewAdminHandler(orderSvc, stats, userSvc, inquirySvc, productHandler, cfg.Admin.Emails),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Str("origin", cfg.App.PublicOrigin).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Storefront stopped")
}
