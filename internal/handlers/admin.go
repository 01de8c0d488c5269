package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
)

// AdminHandler handles admin operations
type AdminHandler struct {
	store    storage.Store
	sessions session.Store
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, sessions session.Store) *AdminHandler {
	return &AdminHandler{
		store:    store,
		sessions: sessions,
	}
}

// GetSessions reports the number of live call sessions
func (h *AdminHandler) GetSessions(c *fiber.Ctx) error {
	count, err := h.sessions.Count(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count sessions",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"active":  count,
	})
}

// GetCall returns the record of one call
func (h *AdminHandler) GetCall(c *fiber.Ctx) error {
	call, err := h.store.GetCall(c.UserContext(), c.Params("callID"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Call not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch call",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"call":    call,
	})
}

// GetCustomer returns the customer registered with a phone
func (h *AdminHandler) GetCustomer(c *fiber.Ctx) error {
	customer, ok := h.customer(c)
	if !ok {
		return nil
	}

	return c.JSON(fiber.Map{
		"success":             true,
		"customer":            customer,
		"subscription_active": customer.SubscriptionActive(time.Now()),
	})
}

// GetReceipts lists a customer's receipts, newest first
func (h *AdminHandler) GetReceipts(c *fiber.Ctx) error {
	customer, ok := h.customer(c)
	if !ok {
		return nil
	}

	receipts, err := h.store.ListReceipts(c.UserContext(), customer.ID)
	if err != nil {
		log.Printf("Failed to list receipts for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch receipts",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// GetContacts lists a customer's contacts
func (h *AdminHandler) GetContacts(c *fiber.Ctx) error {
	customer, ok := h.customer(c)
	if !ok {
		return nil
	}

	contacts, err := h.store.ListContacts(c.UserContext(), customer.ID)
	if err != nil {
		log.Printf("Failed to list contacts for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contacts",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"contacts": contacts,
		"count":    len(contacts),
	})
}

// GetChildren lists a customer's children
func (h *AdminHandler) GetChildren(c *fiber.Ctx) error {
	customer, ok := h.customer(c)
	if !ok {
		return nil
	}

	children, err := h.store.ListChildren(c.UserContext(), customer.ID)
	if err != nil {
		log.Printf("Failed to list children for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch children",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"children": children,
		"count":    len(children),
	})
}

// customer resolves the :phone parameter. When it returns false the error
// response has already been written.
func (h *AdminHandler) customer(c *fiber.Ctx) (*models.Customer, bool) {
	customer, err := h.store.GetCustomerByPhone(c.UserContext(), c.Params("phone"))
	if errors.Is(err, storage.ErrNotFound) {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to fetch customer %s: %v", c.Params("phone"), err)
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch customer",
		})
		return nil, false
	}
	return customer, true
}
