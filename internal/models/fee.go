package models

import "github.com/shopspring/decimal"

type FeeQuote struct {
	AmountSol   decimal.Decimal `json:"amountSol"`
	SolPriceUsd decimal.Decimal `json:"solPriceUsd"`
	Fee         decimal.Decimal `json:"fee"`
}
