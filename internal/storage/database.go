package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm
type DatabaseStore struct {
	db               *gorm.DB
	subscriptionDays int
	bcryptCost       int
}

// NewDatabaseStore creates a gorm backed store. The connection should be
// opened with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewDatabaseStore(db *gorm.DB, subscriptionDays int) *DatabaseStore {
	return &DatabaseStore{
		db:               db,
		subscriptionDays: subscriptionDays,
	}
}

// Customer operations
func (s *DatabaseStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).
		Where("phone = ?", models.NormalizePhone(phone)).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by phone: %w", err)
	}
	return &customer, nil
}

func (s *DatabaseStore) VerifyPassword(ctx context.Context, phone, password string) (bool, error) {
	customer, err := s.GetCustomerByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return checkPassword(customer.PasswordHash, password)
}

func (s *DatabaseStore) CreateCustomer(ctx context.Context, reg *models.CustomerRegistration) (*models.Customer, error) {
	hash, err := hashPassword(reg.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	customer := &models.Customer{
		Phone:             reg.Phone,
		PasswordHash:      hash,
		Name:              reg.Name,
		NationalID:        reg.NationalID,
		BusinessName:      reg.BusinessName,
		BusinessOpenYear:  reg.BusinessOpenYear,
		BusinessCategory:  reg.BusinessCategory,
		SubscriptionStart: now,
		SubscriptionEnd:   now.AddDate(0, 0, s.subscriptionDays),
		IsActive:          true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Customer{}).
			Where("phone = ?", models.NormalizePhone(reg.Phone)).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicatePhone
		}
		return tx.Create(customer).Error
	})
	// the unique index still catches a concurrent insert that passed the count
	if errors.Is(err, ErrDuplicatePhone) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicatePhone
	}
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

// Contact operations
func (s *DatabaseStore) FindOrCreateContact(ctx context.Context, customerID uint, name string) (*models.Contact, error) {
	contact := models.Contact{
		CustomerID: customerID,
		Name:       strings.TrimSpace(name),
		IsActive:   true,
	}

	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND name = ? AND is_active = ?", customerID, contact.Name, true).
		FirstOrCreate(&contact).Error
	if err != nil {
		return nil, fmt.Errorf("find or create contact: %w", err)
	}
	return &contact, nil
}

func (s *DatabaseStore) ListContacts(ctx context.Context, customerID uint) ([]*models.Contact, error) {
	var contacts []*models.Contact
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Order("name").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// Receipt operations
func (s *DatabaseStore) CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error) {
	r := *receipt
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}
	return &r, nil
}

func (s *DatabaseStore) ListReceipts(ctx context.Context, customerID uint) ([]*models.Receipt, error) {
	var receipts []*models.Receipt
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// Child operations
func (s *DatabaseStore) CreateChild(ctx context.Context, child *models.Child) (*models.Child, error) {
	c := *child
	c.IsActive = true
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create child: %w", err)
	}
	return &c, nil
}

func (s *DatabaseStore) ListChildren(ctx context.Context, customerID uint) ([]*models.Child, error) {
	var children []*models.Child
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Order("birth_year DESC").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// Call records
func (s *DatabaseStore) SaveCall(ctx context.Context, call *models.Call) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_id", "phone", "flow", "outcome", "data", "ended_at", "updated_at"}),
	}).Create(call).Error
	if err != nil {
		return fmt.Errorf("save call %s: %w", call.CallID, err)
	}
	return nil
}

func (s *DatabaseStore) GetCall(ctx context.Context, callID string) (*models.Call, error) {
	var call models.Call
	err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &call, nil
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
