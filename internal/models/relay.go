package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GaslessRequest struct {
	SerializedTransaction string `json:"serializedTransaction"`
	Sender                string `json:"sender"`
	Recipient             string `json:"recipient"`
	Username              string `json:"username"`
	AmountLamports        uint64 `json:"amountLamports"`
	ProcessedInitData     string `json:"processedInitData"`
	TelegramSignature     string `json:"telegramSignature"`
	// advisory only, never used to verify
	TelegramPublicKey string `json:"telegramPublicKey"`
}

type RelayStatus string

const (
	RelayStatusSubmitted RelayStatus = "submitted"
	RelayStatusRejected  RelayStatus = "rejected"
	RelayStatusFailed    RelayStatus = "failed"
	RelayStatusPending   RelayStatus = "pending"
)

type RelayOutcome struct {
	Status    RelayStatus `json:"status" msgpack:"status"`
	Signature string      `json:"signature,omitempty" msgpack:"signature"`
	Reason    string      `json:"reason,omitempty" msgpack:"reason"`
	Cause     string      `json:"cause,omitempty" msgpack:"cause"`
	UpdatedAt time.Time   `json:"updated_at" msgpack:"updated_at"`
}

func (o *RelayOutcome) Final() bool {
	return o.Status == RelayStatusSubmitted || o.Status == RelayStatusFailed
}

type RelayRecord struct {
	bun.BaseModel  `bun:"table:relay_record"`
	Signature      string    `bun:"signature,pk" json:"signature"`
	Sender         string    `bun:"sender" json:"sender"`
	Recipient      string    `bun:"recipient" json:"recipient"`
	Username       string    `bun:"username" json:"username"`
	AmountLamports int64     `bun:"amount_lamports" json:"amount_lamports"`
	Kind           string    `bun:"kind" json:"kind"`
	Status         string    `bun:"status" json:"status"`
	Cause          *string   `bun:"cause" json:"cause"`
	CreatedAt      time.Time `bun:"created_at,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,default:current_timestamp" json:"updated_at"`
}

type PayerStatus struct {
	Payer           string `json:"payer"`
	BalanceLamports uint64 `json:"balance_lamports"`
	Funded          bool   `json:"funded"`
	TrustedKeys     int    `json:"trusted_keys"`
}

type ClaimTransactionRequest struct {
	Recipient         string `json:"recipient"`
	Depositor         string `json:"depositor"`
	Username          string `json:"username"`
	AmountLamports    uint64 `json:"amountLamports"`
	ProcessedInitData string `json:"processedInitData"`
}

type ClaimTransaction struct {
	SerializedTransaction string `json:"serializedTransaction"`
	LastValidBlockHeight  uint64 `json:"lastValidBlockHeight"`
}
