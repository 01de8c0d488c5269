package models

import (
	"gorm.io/gorm"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/utils"
)

// ReceiptStatusPending is the status of a newly created receipt
const ReceiptStatusPending = "pending"

// Receipt is issued by a customer to one of its contacts
type Receipt struct {
	gorm.Model
	ReceiptNo   string `json:"receipt_no" gorm:"uniqueIndex;not null"`
	CustomerID  uint   `json:"customer_id" gorm:"index;not null"`
	ContactID   uint   `json:"contact_id" gorm:"index;not null"`
	CallID      string `json:"call_id" gorm:"index"`
	Amount      int64  `json:"amount" gorm:"not null"` // smallest currency unit
	Description string `json:"description"`
	Status      string `json:"status" gorm:"default:'pending'"`
}

// BeforeCreate assigns the receipt number and default status
func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	r.Prepare()
	return nil
}

// Prepare fills the generated fields. Stores that bypass gorm call it directly.
func (r *Receipt) Prepare() {
	if r.ReceiptNo == "" {
		r.ReceiptNo = utils.GenerateSecureID("RC")
	}
	if r.Status == "" {
		r.Status = ReceiptStatusPending
	}
}
