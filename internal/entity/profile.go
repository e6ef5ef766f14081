package entity

import (
	"time"

	"github.com/google/uuid"
)

// Profile groups receipts under one owner/workspace.
type Profile struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DefaultCurrency string    `json:"default_currency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
