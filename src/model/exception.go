package model

import "time"

// Exception records a system-level failure that must be persisted for
// auditing. Accounting invariant violations land here so they are never
// silently swallowed.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "engine"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "ledger"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "ReleaseMargin"

	// Error information
	Message string `gorm:"type:text" json:"message"` // err.Error()
	Stack   string `gorm:"type:text" json:"stack"`   // stack trace (optional)

	// Severity level
	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:jsonb" json:"context,omitempty"`

	// Audit info
	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
