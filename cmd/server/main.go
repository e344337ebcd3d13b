package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/subashmuthub/lab-management-system/internal/config"
	"github.com/subashmuthub/lab-management-system/internal/database"
	"github.com/subashmuthub/lab-management-system/internal/handler"
	"github.com/subashmuthub/lab-management-system/internal/mail"
	"github.com/subashmuthub/lab-management-system/internal/middleware"
	"github.com/subashmuthub/lab-management-system/internal/otp"
	"github.com/subashmuthub/lab-management-system/internal/queue"
	"github.com/subashmuthub/lab-management-system/internal/repository"
	"github.com/subashmuthub/lab-management-system/internal/router"
	"github.com/subashmuthub/lab-management-system/internal/service"
	"github.com/subashmuthub/lab-management-system/internal/session"
	"github.com/subashmuthub/lab-management-system/internal/validation"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "lab-management").Logger()
	if cfg.Env != "prod" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	// Redis is optional. Without it sessions and passcodes live in
	// process memory, which is fine for a single instance.
	rdb := config.NewRedisClient()

	var sessions session.Store
	var otpStore otp.Store
	if rdb != nil {
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
		otpStore = otp.NewRedisStore(rdb)
		logger.Info().Msg("using redis-backed session and passcode stores")
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		otpStore = otp.NewMemoryStore()
		logger.Warn().Msg("redis unavailable, falling back to in-memory stores")
	}

	var mailer mail.Mailer
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		mailer = &mail.LogMailer{Log: logger}
		logger.Warn().Msg("SMTP not configured, logging outbound mail instead")
	}

	users := repository.NewUserRepo(db)
	resources := repository.NewResourceRepo(db)
	bookings := repository.NewBookingRepo(db)

	otps := otp.NewService(otpStore, mailer, cfg.OTPTTL, logger)
	bookingSvc := service.NewBookingService(bookings, resources, users, &service.QueuePublisher{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go queue.StartNotificationConsumer(ctx, db, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg, users, sessions, otps, mailer, logger)
	bookingHandler := handler.NewBookingHandler(bookingSvc)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, sessions, limiter)
	router.RegisterBookings(e, bookingHandler, sessions)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
