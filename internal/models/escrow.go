package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EscrowAddress struct {
	Owner       string `json:"owner"`
	Username    string `json:"username"`
	Deposit     string `json:"deposit"`
	DepositBump uint8  `json:"deposit_bump"`
	Vault       string `json:"vault"`
	VaultBump   uint8  `json:"vault_bump"`
}

type EscrowTopUp struct {
	bun.BaseModel  `bun:"table:escrow_top_up"`
	ID             string    `bun:"id,pk" json:"id"`
	Depositor      string    `bun:"depositor" json:"depositor"`
	Username       string    `bun:"username" json:"username"`
	DepositAddress string    `bun:"deposit_address" json:"deposit_address"`
	Lamports       int64     `bun:"lamports" json:"lamports"`
	Signature      *string   `bun:"signature" json:"signature"`
	Success        bool      `bun:"success" json:"success"`
	Source         string    `bun:"source" json:"source"`
	CreatedAt      time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
}
