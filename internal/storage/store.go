package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePhone is returned when registering a phone that already has a customer
	ErrDuplicatePhone = errors.New("phone already registered")
)

// Store defines the interface for storage operations
type Store interface {
	// Customer operations
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	VerifyPassword(ctx context.Context, phone, password string) (bool, error)
	CreateCustomer(ctx context.Context, reg *models.CustomerRegistration) (*models.Customer, error)

	// Contact operations
	FindOrCreateContact(ctx context.Context, customerID uint, name string) (*models.Contact, error)
	ListContacts(ctx context.Context, customerID uint) ([]*models.Contact, error)

	// Receipt operations
	CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error)
	ListReceipts(ctx context.Context, customerID uint) ([]*models.Receipt, error)

	// Child operations
	CreateChild(ctx context.Context, child *models.Child) (*models.Child, error)
	ListChildren(ctx context.Context, customerID uint) ([]*models.Child, error)

	// Call records
	SaveCall(ctx context.Context, call *models.Call) error
	GetCall(ctx context.Context, callID string) (*models.Call, error)

	// Ping reports whether the backing storage is reachable
	Ping(ctx context.Context) error
}
