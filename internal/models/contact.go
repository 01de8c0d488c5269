package models

import "gorm.io/gorm"

// Contact is a client of a customer that receipts are issued to
type Contact struct {
	gorm.Model
	CustomerID  uint   `json:"customer_id" gorm:"index;not null"`
	Name        string `json:"name" gorm:"not null"`
	NationalID  string `json:"national_id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`
}
