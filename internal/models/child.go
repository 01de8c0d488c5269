package models

import "gorm.io/gorm"

// Child is a customer's child, kept for entitlement calculations
type Child struct {
	gorm.Model
	CustomerID uint   `json:"customer_id" gorm:"index;not null"`
	Name       string `json:"name" gorm:"not null"`
	BirthYear  int    `json:"birth_year" gorm:"not null"`
	IsActive   bool   `json:"is_active" gorm:"default:true"`
}
