package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
)

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	customers map[string]*models.Customer // by phone
	contacts  map[uint]*models.Contact
	receipts  map[uint]*models.Receipt
	children  map[uint]*models.Child
	calls     map[string]*models.Call

	// Mutexes for thread safety
	customerMu sync.RWMutex
	contactMu  sync.RWMutex
	receiptMu  sync.RWMutex
	childMu    sync.RWMutex
	callMu     sync.RWMutex

	// Counters for ID generation
	customerCounter uint
	contactCounter  uint
	receiptCounter  uint
	childCounter    uint
	callCounter     uint

	subscriptionDays int
	bcryptCost       int
	now              func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore(subscriptionDays int) *MemoryStore {
	return &MemoryStore{
		customers:        make(map[string]*models.Customer),
		contacts:         make(map[uint]*models.Contact),
		receipts:         make(map[uint]*models.Receipt),
		children:         make(map[uint]*models.Child),
		calls:            make(map[string]*models.Call),
		subscriptionDays: subscriptionDays,
		now:              time.Now,
	}
}

// WithBcryptCost lowers hashing cost, used by tests
func (m *MemoryStore) WithBcryptCost(cost int) *MemoryStore {
	m.bcryptCost = cost
	return m
}

// Customer operations
func (m *MemoryStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	customer, exists := m.customers[models.NormalizePhone(phone)]
	if !exists {
		return nil, ErrNotFound
	}
	c := *customer
	return &c, nil
}

func (m *MemoryStore) VerifyPassword(ctx context.Context, phone, password string) (bool, error) {
	m.customerMu.RLock()
	customer, exists := m.customers[models.NormalizePhone(phone)]
	m.customerMu.RUnlock()

	if !exists {
		return false, nil
	}
	return checkPassword(customer.PasswordHash, password)
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, reg *models.CustomerRegistration) (*models.Customer, error) {
	phone := models.NormalizePhone(reg.Phone)

	// hash before taking the lock, bcrypt is slow on purpose
	hash, err := hashPassword(reg.Password, m.bcryptCost)
	if err != nil {
		return nil, err
	}

	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	if _, exists := m.customers[phone]; exists {
		return nil, ErrDuplicatePhone
	}

	now := m.now()
	m.customerCounter++
	customer := &models.Customer{
		Phone:             phone,
		PasswordHash:      hash,
		Name:              reg.Name,
		NationalID:        reg.NationalID,
		BusinessName:      reg.BusinessName,
		BusinessOpenYear:  reg.BusinessOpenYear,
		BusinessCategory:  reg.BusinessCategory,
		SubscriptionStart: now,
		SubscriptionEnd:   now.AddDate(0, 0, m.subscriptionDays),
		IsActive:          true,
	}
	customer.ID = m.customerCounter
	customer.CreatedAt = now
	customer.UpdatedAt = now

	m.customers[phone] = customer
	c := *customer
	return &c, nil
}

// Contact operations
func (m *MemoryStore) FindOrCreateContact(ctx context.Context, customerID uint, name string) (*models.Contact, error) {
	name = strings.TrimSpace(name)

	m.contactMu.Lock()
	defer m.contactMu.Unlock()

	for _, contact := range m.contacts {
		if contact.CustomerID == customerID && contact.IsActive && contact.Name == name {
			c := *contact
			return &c, nil
		}
	}

	m.contactCounter++
	contact := &models.Contact{
		CustomerID: customerID,
		Name:       name,
		IsActive:   true,
	}
	contact.ID = m.contactCounter
	contact.CreatedAt = m.now()
	contact.UpdatedAt = contact.CreatedAt

	m.contacts[contact.ID] = contact
	c := *contact
	return &c, nil
}

func (m *MemoryStore) ListContacts(ctx context.Context, customerID uint) ([]*models.Contact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	var contacts []*models.Contact
	for _, contact := range m.contacts {
		if contact.CustomerID == customerID && contact.IsActive {
			c := *contact
			contacts = append(contacts, &c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Name < contacts[j].Name })
	return contacts, nil
}

// Receipt operations
func (m *MemoryStore) CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error) {
	m.receiptMu.Lock()
	defer m.receiptMu.Unlock()

	m.receiptCounter++
	r := *receipt
	r.Prepare()
	r.ID = m.receiptCounter
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt

	m.receipts[r.ID] = &r
	out := r
	return &out, nil
}

func (m *MemoryStore) ListReceipts(ctx context.Context, customerID uint) ([]*models.Receipt, error) {
	m.receiptMu.RLock()
	defer m.receiptMu.RUnlock()

	var receipts []*models.Receipt
	for _, receipt := range m.receipts {
		if receipt.CustomerID == customerID {
			r := *receipt
			receipts = append(receipts, &r)
		}
	}
	// newest first
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ID > receipts[j].ID })
	return receipts, nil
}

// Child operations
func (m *MemoryStore) CreateChild(ctx context.Context, child *models.Child) (*models.Child, error) {
	m.childMu.Lock()
	defer m.childMu.Unlock()

	m.childCounter++
	c := *child
	c.ID = m.childCounter
	c.IsActive = true
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt

	m.children[c.ID] = &c
	out := c
	return &out, nil
}

func (m *MemoryStore) ListChildren(ctx context.Context, customerID uint) ([]*models.Child, error) {
	m.childMu.RLock()
	defer m.childMu.RUnlock()

	var children []*models.Child
	for _, child := range m.children {
		if child.CustomerID == customerID && child.IsActive {
			c := *child
			children = append(children, &c)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].BirthYear > children[j].BirthYear })
	return children, nil
}

// Call records
func (m *MemoryStore) SaveCall(ctx context.Context, call *models.Call) error {
	m.callMu.Lock()
	defer m.callMu.Unlock()

	c := *call
	if existing, exists := m.calls[call.CallID]; exists {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		if !existing.StartedAt.IsZero() && (c.StartedAt.IsZero() || existing.StartedAt.Before(c.StartedAt)) {
			c.StartedAt = existing.StartedAt
		}
	} else {
		m.callCounter++
		c.ID = m.callCounter
		c.CreatedAt = m.now()
	}
	c.UpdatedAt = m.now()

	m.calls[call.CallID] = &c
	return nil
}

func (m *MemoryStore) GetCall(ctx context.Context, callID string) (*models.Call, error) {
	m.callMu.RLock()
	defer m.callMu.RUnlock()

	call, exists := m.calls[callID]
	if !exists {
		return nil, ErrNotFound
	}
	c := *call
	return &c, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
