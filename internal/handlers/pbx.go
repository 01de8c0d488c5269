package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/dialog"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/ivr"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/middleware"
)

// PBX callback arguments
const (
	argPhone  = "PBXphone"
	argCallID = "PBXcallId"

	// every other PBX* argument is call metadata, not an answer
	pbxArgPrefix = "PBX"
)

// PBXHandler serves the PBX webhook routes, one per flow
type PBXHandler struct {
	engine *dialog.Engine
}

// NewPBXHandler creates a new PBX handler
func NewPBXHandler(engine *dialog.Engine) *PBXHandler {
	return &PBXHandler{
		engine: engine,
	}
}

// Flow returns the handler for one dialogue flow
func (h *PBXHandler) Flow(flow string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cb := ParseCallback(c)
		if cb.Phone == "" || cb.CallID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "PBXphone and PBXcallId are required",
			})
		}

		resp, err := h.engine.Handle(c.UserContext(), flow, cb)
		if errors.Is(err, dialog.ErrUnknownFlow) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown flow",
			})
		}
		if err != nil {
			log.Printf("❌ PBX callback %s/%s failed: %v", flow, cb.CallID, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Failed to process call",
			})
		}

		return c.JSON(ivr.Render(resp))
	}
}

// ParseCallback reads the caller and the single answered field from the
// query string and form body. The PBX appends the newest answer last, so the
// last non-metadata argument wins.
func ParseCallback(c *fiber.Ctx) dialog.Callback {
	cb := dialog.Callback{}

	visit := func(key, value []byte) {
		k := string(key)
		switch {
		case k == argPhone:
			cb.Phone = strings.TrimSpace(string(value))
		case k == argCallID:
			cb.CallID = strings.TrimSpace(string(value))
		case k == middleware.PBXTokenArg, strings.HasPrefix(k, pbxArgPrefix):
		default:
			cb.Key = k
			cb.Value = string(value)
		}
	}

	c.Context().QueryArgs().VisitAll(visit)
	if c.Method() == fiber.MethodPost {
		c.Request().PostArgs().VisitAll(visit)
	}

	return cb
}
