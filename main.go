package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shasan419/maktab/auth"
	"github.com/shasan419/maktab/protocol"
	"github.com/shasan419/maktab/server"
	"github.com/shasan419/maktab/station"
	"github.com/shasan419/maktab/store"
)

const defaultTokenTTL = 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	secret := os.Getenv("JWT_SECRET")
	username := os.Getenv("ADMIN_USERNAME")
	passwordHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if secret == "" || username == "" || passwordHash == "" {
		slog.Error("JWT_SECRET, ADMIN_USERNAME and ADMIN_PASSWORD_HASH must be set")
		os.Exit(1)
	}

	tokenTTL := defaultTokenTTL
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid TOKEN_TTL", "value", v, "error", err)
			os.Exit(1)
		}
		tokenTTL = d
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "maktab.db"
	}

	times, err := store.Open(dbPath)
	if err != nil {
		slog.Error("open store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer times.Close()

	authService := auth.NewService([]byte(secret), username, []byte(passwordHash), tokenTTL)
	relay := station.New()
	handler := protocol.NewHandler(relay, authService)
	srv := server.New(":"+port, relay, handler, authService, times)

	go func() {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
