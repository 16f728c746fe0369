package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	FeeInvoiceStatusCreated = "created"
	FeeInvoiceStatusPaid    = "paid"
	FeeInvoiceStatusSettled = "settled"
)

type FeeInvoice struct {
	bun.BaseModel  `bun:"table:fee_invoice"`
	Payload        string          `bun:"payload,pk" json:"payload"`
	TelegramUserID int64           `bun:"telegram_user_id" json:"telegram_user_id"`
	Username       string          `bun:"username" json:"username"`
	AmountSol      decimal.Decimal `bun:"amount_sol,type:numeric" json:"amount_sol"`
	Stars          int             `bun:"stars" json:"stars"`
	Status         string          `bun:"status" json:"status"`
	ChargeID       *string         `bun:"charge_id" json:"charge_id"`

	// last signed top-up and the block height after which it can no longer land
	TopUpSignature  *string   `bun:"top_up_signature" json:"top_up_signature"`
	TopUpValidUntil uint64    `bun:"top_up_valid_until" json:"-"`
	CreatedAt       time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,default:current_timestamp" json:"updated_at"`
}

type FeeInvoiceLink struct {
	InvoiceLink string    `json:"invoice_link"`
	Stars       int       `json:"stars"`
	Payload     string    `json:"payload"`
	Quote       *FeeQuote `json:"quote"`
}
