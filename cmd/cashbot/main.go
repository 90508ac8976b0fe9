package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashbot/internal/cli"
	apphttp "cashbot/internal/http"
	"cashbot/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	srv := apphttp.NewServer(":"+cfg.Port, repo, logger, apphttp.Options{
		SummaryCacheTTL:  cfg.SummaryCacheTTL,
		SummaryCacheSize: cfg.SummaryCacheSize,
		LinkCodeTTL:      cfg.LinkCodeTTL,
		Location:         cfg.Location(),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting cashbot API", "port", cfg.Port, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
