package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is a processor-issued saved card. Only display metadata is
// stored here; the engine references the processor id and never copies card
// data.
type PaymentMethod struct {
	ID          string    `json:"id"` // processor-issued id
	UserID      uuid.UUID `json:"user_id"`
	Brand       string    `json:"brand"`
	Last4       string    `json:"last4"`
	ExpiryMonth int       `json:"expiry_month"`
	ExpiryYear  int       `json:"expiry_year"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}
