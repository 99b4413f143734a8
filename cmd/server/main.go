// Command server runs the bot delivery service: webhook ingestion on one
// side, the outbound delivery engine on the other, and the management API
// for the services that decide what gets sent.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/azatarm-prog/telegive-bot-service/internal/classify"
	"github.com/azatarm-prog/telegive-bot-service/internal/clients"
	"github.com/azatarm-prog/telegive-bot-service/internal/config"
	"github.com/azatarm-prog/telegive-bot-service/internal/dispatch"
	"github.com/azatarm-prog/telegive-bot-service/internal/domain"
	"github.com/azatarm-prog/telegive-bot-service/internal/engine"
	"github.com/azatarm-prog/telegive-bot-service/internal/guard"
	httpapi "github.com/azatarm-prog/telegive-bot-service/internal/http"
	"github.com/azatarm-prog/telegive-bot-service/internal/http/middleware"
	"github.com/azatarm-prog/telegive-bot-service/internal/observability"
	"github.com/azatarm-prog/telegive-bot-service/internal/repo"
	"github.com/azatarm-prog/telegive-bot-service/internal/services"
	"github.com/azatarm-prog/telegive-bot-service/internal/sysutil"
	"github.com/azatarm-prog/telegive-bot-service/internal/telegram"
)

const version = "1.0.0"

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(repo.Options{Path: cfg.DBPath, Tracing: cfg.OTEL.Enabled})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	tg, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram client init failed")
	}

	// Upstream services; each is nil-safe behind its URL being configured.
	participants := clients.NewParticipant(cfg.Services.ParticipantURL, cfg.Services.CallTimeout)
	giveaways := clients.NewGiveaway(cfg.Services.GiveawayURL, cfg.Services.CallTimeout)
	channels := clients.NewChannel(cfg.Services.ChannelURL, cfg.Services.CallTimeout)

	var authValidator middleware.TokenValidator
	if cfg.Services.AuthURL != "" {
		auth := clients.NewAuth(cfg.Services.AuthURL, cfg.Services.CallTimeout)
		authValidator = auth.ValidateServiceToken
	}

	// Inbound pipeline: dedup window, captcha challenges, per-chat dispatch.
	window := guard.NewWindow(cfg.DedupWindow, cfg.DedupMaxEntries)
	challenges := classify.NewChallengeStore(cfg.CaptchaTTL)
	dispatcher := dispatch.New(16)
	bot := services.NewBotService(tg, participants, giveaways, channels, challenges)
	// Budget for one interaction end to end: external service calls plus
	// the reply send.
	handlerTimeout := 2*cfg.Services.CallTimeout + cfg.Delivery.SendTimeout
	processor := services.NewUpdateProcessor(
		db, window, challenges, bot.Registry(), tg, dispatcher, handlerTimeout,
	)

	// Outbound engine.
	eng := engine.New(db, tg, cfg.Delivery)
	eng.OnDelivered = func(task *domain.DeliveryTask, messageID int64) {
		if task.MessageType != domain.MessageAnnouncement || task.GiveawayID == nil {
			return
		}
		rctx, cancel := context.WithTimeout(context.Background(), cfg.Services.CallTimeout)
		defer cancel()
		if err := giveaways.RecordMessageID(rctx, *task.GiveawayID, messageID); err != nil {
			log.Warn().Err(err).Int64("giveaway_id", *task.GiveawayID).Msg("record message id failed")
		}
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	eng.Start(engineCtx)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, httpapi.Deps{
		DB:       db,
		Queue:    eng,
		Ingest:   processor,
		Admin:    tg,
		Platform: tg,
		Auth:     authValidator,
	}, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Stop accepting requests first, then drain the moving parts: engine
	// workers finish their current attempt, the dispatcher drains queued
	// interactions.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	stopEngine()
	eng.Wait()
	dispatcher.Close()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
