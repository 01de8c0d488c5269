package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	store    Pinger
	sessions session.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store Pinger, sessions session.Store) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		store:    store,
		sessions: sessions,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := "OK"
	code := fiber.StatusOK

	storeStatus := "OK"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = err.Error()
		status = "DEGRADED"
		code = fiber.StatusServiceUnavailable
	}

	sessions, err := h.sessions.Count(ctx)
	sessionStatus := "OK"
	if err != nil {
		sessionStatus = err.Error()
		status = "DEGRADED"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "PBX IVR Backend",
		"version":  h.Version,
		"store":    storeStatus,
		"sessions": fiber.Map{"status": sessionStatus, "active": sessions},
	})
}
