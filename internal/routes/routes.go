package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/dialog"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/handlers"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/middleware"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
)

// Version is reported by / and /health
const Version = "1.0.0"

// PBX callback paths, one per flow
var pbxRoutes = map[string]string{
	"/login":        dialog.FlowLogin,
	"/sign":         dialog.FlowRegistration,
	"/create_recpt": dialog.FlowReceipt,
	"/add_child":    dialog.FlowChild,
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, engine *dialog.Engine, store storage.Store, sessions session.Store) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "PBX IVR Backend",
			"version": Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"login":   "/login",
				"sign":    "/sign",
				"receipt": "/create_recpt",
				"child":   "/add_child",
				"admin":   "/admin",
			},
		})
	})

	health := handlers.NewHealthHandler(Version, store, sessions)
	app.Get("/health", health.Check)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ========== PBX CALLBACKS ==========
	pbx := handlers.NewPBXHandler(engine)
	pbxAuth := middleware.ValidatePBXToken(cfg.PBXWebhookToken)
	for path, flow := range pbxRoutes {
		app.Get(path, pbxAuth, pbx.Flow(flow))
		app.Post(path, pbxAuth, pbx.Flow(flow))
	}

	// ========== ADMIN ROUTES ==========
	adminHandler := handlers.NewAdminHandler(store, sessions)
	admin := app.Group("/admin", middleware.RequireAdminToken(cfg.AdminToken))
	admin.Get("/sessions", adminHandler.GetSessions)
	admin.Get("/calls/:callID", adminHandler.GetCall)
	admin.Get("/customers/:phone", adminHandler.GetCustomer)
	admin.Get("/customers/:phone/receipts", adminHandler.GetReceipts)
	admin.Get("/customers/:phone/contacts", adminHandler.GetContacts)
	admin.Get("/customers/:phone/children", adminHandler.GetChildren)
}
