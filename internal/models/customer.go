package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Customer is a registered business owner. Phone is the login identity.
type Customer struct {
	gorm.Model

	Phone             string    `json:"phone" gorm:"uniqueIndex;not null"`
	PasswordHash      string    `json:"-" gorm:"not null"`
	Name              string    `json:"name"`
	NationalID        string    `json:"national_id"`
	BusinessName      string    `json:"business_name"`
	BusinessOpenYear  int       `json:"business_open_year"`
	BusinessCategory  string    `json:"business_category"`
	SubscriptionStart time.Time `json:"subscription_start"`
	SubscriptionEnd   time.Time `json:"subscription_end"`
	IsActive          bool      `json:"is_active" gorm:"default:true"`
}

// BeforeCreate normalizes the phone number
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	c.Phone = NormalizePhone(c.Phone)
	return nil
}

// SubscriptionActive reports whether the subscription covers the given day
func (c *Customer) SubscriptionActive(now time.Time) bool {
	if c.SubscriptionEnd.IsZero() {
		return false
	}
	return !now.After(c.SubscriptionEnd)
}

// CustomerRegistration carries the fields collected by the registration flow
type CustomerRegistration struct {
	Phone            string `json:"phone"`
	Password         string `json:"-"`
	Name             string `json:"name"`
	NationalID       string `json:"national_id"`
	BusinessName     string `json:"business_name"`
	BusinessOpenYear int    `json:"business_open_year"`
	BusinessCategory string `json:"business_category"`
}

// NormalizePhone strips the separators callers and PBXs put in numbers
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}
