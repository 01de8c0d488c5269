package models

import (
	"time"

	"gorm.io/gorm"
)

// Call outcomes
const (
	CallOutcomeCompleted   = "completed"
	CallOutcomeTransferred = "transferred"
	CallOutcomeLocked      = "locked"
	CallOutcomeFailed      = "failed"
)

// Call records how a phone call left the IVR. One row per call id, the
// last finished flow wins.
type Call struct {
	gorm.Model
	CallID     string     `json:"call_id" gorm:"uniqueIndex;not null"`
	CustomerID *uint      `json:"customer_id" gorm:"index"`
	Phone      string     `json:"phone" gorm:"index"`
	Flow       string     `json:"flow"`
	Outcome    string     `json:"outcome"`
	Data       string     `json:"data"` // JSON of collected non-sensitive fields
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
}
