package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shasan419/maktab/auth"
)

// prayerTimeFields is the closed set of keys the store accepts.
var prayerTimeFields = map[string]bool{
	"fajr":    true,
	"sunrise": true,
	"dhuhr":   true,
	"asr":     true,
	"maghrib": true,
	"isha":    true,
	"jumuah":  true,
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.broadcast.Snapshot())
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		slog.Error("login error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handlePrayerTimes(c echo.Context) error {
	times, err := s.times.All(c.Request().Context())
	if err != nil {
		slog.Error("prayer times read error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, times)
}

func (s *Server) handleSetPrayerTimes(c echo.Context) error {
	var fields map[string]string
	if err := c.Bind(&fields); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	for name := range fields {
		if !prayerTimeFields[name] {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown field: " + name})
		}
	}
	for name, value := range fields {
		if err := s.times.Set(c.Request().Context(), name, value); err != nil {
			slog.Error("prayer times write error", "field", name, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requireToken guards mutating collaborator endpoints with the same bearer
// tokens the transmitter registration uses.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || !s.auth.Verify(parts[1]) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		return next(c)
	}
}
