package entity

import (
	"time"

	"github.com/google/uuid"
)

// Receipt represents a stored receipt for data transfer between layers.
// TxDateRaw keeps the date exactly as matched in the source text;
// 03/04/2025 is ambiguous between locales and reformatting it would
// silently pick one. Empty string means no date was found.
type Receipt struct {
	ID           uuid.UUID     `json:"id"`
	ProfileID    uuid.UUID     `json:"profile_id"`
	MerchantName string        `json:"merchant_name"`
	TxDateRaw    string        `json:"tx_date_raw"`
	Subtotal     *float64      `json:"subtotal,omitempty"`
	Tax          *float64      `json:"tax,omitempty"`
	Total        *float64      `json:"total,omitempty"`
	CurrencyCode string        `json:"currency_code"`
	CategoryName string        `json:"category_name"`
	RawText      string        `json:"raw_text"`
	Items        []ReceiptItem `json:"items"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ReceiptItem is one stored line item of a receipt.
type ReceiptItem struct {
	ID        uuid.UUID `json:"id"`
	ReceiptID uuid.UUID `json:"receipt_id"`
	Position  int       `json:"position"` // document order, 0-based
	Name      string    `json:"name"`
	Price     *float64  `json:"price,omitempty"`
}
