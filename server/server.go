// Package server is the HTTP surface: the websocket endpoint the relay
// speaks over, plus the collaborator endpoints (login, status snapshot,
// prayer times).
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shasan419/maktab/domain"
	ws "github.com/shasan419/maktab/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcast is the read-only view of the relay published over HTTP.
type Broadcast interface {
	Snapshot() domain.Snapshot
}

// Authenticator issues tokens for the login endpoint and verifies bearer
// tokens on protected routes.
type Authenticator interface {
	Login(username, password string) (string, error)
	Verify(token string) bool
}

// PrayerTimeStore persists the prayer-time fields.
type PrayerTimeStore interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, name, value string) error
}

type Server struct {
	echo      *echo.Echo
	addr      string
	broadcast Broadcast
	handler   domain.MessageHandler
	auth      Authenticator
	times     PrayerTimeStore
}

func New(addr string, broadcast Broadcast, handler domain.MessageHandler, auth Authenticator, times PrayerTimeStore) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		addr:      addr,
		broadcast: broadcast,
		handler:   handler,
		auth:      auth,
		times:     times,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.POST("/api/login", s.handleLogin)
	s.echo.GET("/api/prayer-times", s.handlePrayerTimes)
	s.echo.PUT("/api/prayer-times", s.handleSetPrayerTimes, s.requireToken)

	// The relay endpoint; all broadcast traffic rides this one path.
	s.echo.GET("/ws/live", s.handleWebSocket)
}

func (s *Server) Start() error {
	slog.Info("server starting", "addr", s.addr)
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return nil
	}
	ws.NewConn(uuid.New().String(), conn, s.handler).Start()
	return nil
}
