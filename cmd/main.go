package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v9"

	"flighttracker/internal/client"
	"flighttracker/internal/configuration"
	"flighttracker/internal/database"
	"flighttracker/internal/logger"
	"flighttracker/internal/server"
	"flighttracker/internal/tracker"
)

func main() {
	if err := runApp(); err != nil {
		time.Sleep(time.Second)
		os.Exit(1)
	}
}

func runApp() error {
	appContext := context.Background()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelError, logOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("flighttracker.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput)

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(appContext); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()
	db := database.Database{
		Database:         dbConn.Database(database.Name),
		MinCheckInterval: config.MinCheckInterval,
	}

	var redisClient *redis.Client
	if config.RedisAddress != "" {
		appLogger.Info("Using Redis quote cache at", config.RedisAddress)
		redisClient = redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		defer func() {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Error closing Redis client:", err)
			}
		}()
	}

	apiClient := client.Client{
		Client:        &http.Client{Timeout: config.ProviderTimeout},
		Redis:         redisClient,
		QuoteBaseURL:  config.ProviderBaseURL,
		QuoteCacheTTL: config.QuoteCacheTTL,
		Currency:      config.QuoteCurrency,
		SMTP: client.SMTPConfig{
			Host:     config.SMTPHost,
			Port:     config.SMTPPort,
			Username: config.SMTPUsername,
			Password: config.SMTPPassword,
			From:     config.SMTPFrom,
		},
		Logger: appLogger,
	}

	limiter := tracker.NewLimiter(config.RateLimitMaxRequests, config.RateLimitWindow, config.RateLimitWaitTimeout)
	trk := tracker.New(db, apiClient, apiClient, limiter,
		tracker.Policy{
			MaxRetries: config.RetryMaxRetries,
			BaseDelay:  config.RetryBaseDelay,
			MaxDelay:   config.RetryMaxDelay,
			Multiplier: config.RetryMultiplier,
		},
		appLogger,
		tracker.Options{
			PollInterval:   config.PollInterval,
			WorkerPoolSize: config.WorkerPoolSize,
			ShutdownGrace:  config.ShutdownGrace,
		})

	srv := server.Server{
		DB:            db,
		Tracker:       trk,
		Logger:        appLogger,
		AuthSecretKey: config.AuthSecretKey,
	}

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(appContext, os.Interrupt, syscall.SIGTERM)
	defer stop()

	trk.Start()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("Serving on", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutdown signal received")
	case err := <-errCh:
		appLogger.Error("HTTP server stopped unexpectedly:", err)
		trk.Stop()
		return err
	}

	trk.Stop()

	shutdownCtx, cancel := context.WithTimeout(appContext, config.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Error shutting down HTTP server:", err)
		return err
	}
	appLogger.Info("Shutdown complete")
	return nil
}
