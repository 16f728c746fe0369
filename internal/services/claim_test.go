package services

import (
	"context"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gaslessrelay/internal/models"
	"gaslessrelay/internal/pkg/solana_utils"
)

func TestClaimTransactionRoundTrip(t *testing.T) {
	env := newRelayEnv(t)
	service := env.relay(t)
	ctx := context.Background()

	recipient := solana.NewWallet().PrivateKey
	depositor := solana.NewWallet().PublicKey()
	initData, signature := env.envelope("alice_tg")

	built, err := service.ClaimTransaction(ctx, &models.ClaimTransactionRequest{
		Recipient:         recipient.PublicKey().String(),
		Depositor:         depositor.String(),
		Username:          "alice_tg",
		AmountLamports:    777,
		ProcessedInitData: initData,
	})
	require.NoError(t, err)
	require.EqualValues(t, fakeLastValidBlockHeight, built.LastValidBlockHeight)

	tx, err := solana_utils.DecodeTransaction(built.SerializedTransaction)
	require.NoError(t, err)
	require.Equal(t, env.payer.PublicKey(), tx.Message.AccountKeys[0])
	require.Equal(t, []solana.PublicKey{env.payer.PublicKey(), recipient.PublicKey()}, solana_utils.SignerKeys(tx))

	_, err = solana_utils.NewLocalWallet(recipient).SignTransaction(ctx, tx)
	require.NoError(t, err)
	encoded, err := solana_utils.EncodeTransaction(tx)
	require.NoError(t, err)

	outcome, err := service.Relay(ctx, &models.GaslessRequest{
		SerializedTransaction: encoded,
		Sender:                depositor.String(),
		Recipient:             recipient.PublicKey().String(),
		Username:              "alice_tg",
		AmountLamports:        777,
		ProcessedInitData:     initData,
		TelegramSignature:     signature,
	})
	require.NoError(t, err)
	require.Equal(t, models.RelayStatusSubmitted, outcome.Status)
}

func TestClaimTransactionValidation(t *testing.T) {
	env := newRelayEnv(t)
	service := env.relay(t)
	initData, _ := env.envelope("alice_tg")

	valid := func() *models.ClaimTransactionRequest {
		return &models.ClaimTransactionRequest{
			Recipient:         solana.NewWallet().PublicKey().String(),
			Depositor:         solana.NewWallet().PublicKey().String(),
			Username:          "alice_tg",
			AmountLamports:    1,
			ProcessedInitData: initData,
		}
	}

	cases := []struct {
		name   string
		mutate func(req *models.ClaimTransactionRequest)
	}{
		{"bad recipient", func(req *models.ClaimTransactionRequest) { req.Recipient = "nope" }},
		{"bad depositor", func(req *models.ClaimTransactionRequest) { req.Depositor = "" }},
		{"bad username", func(req *models.ClaimTransactionRequest) { req.Username = "a" }},
		{"zero amount", func(req *models.ClaimTransactionRequest) { req.AmountLamports = 0 }},
		{"missing init data", func(req *models.ClaimTransactionRequest) { req.ProcessedInitData = "" }},
		{"oversized init data", func(req *models.ClaimTransactionRequest) {
			req.ProcessedInitData = strings.Repeat("ab", 769)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(req)
			_, err := service.ClaimTransaction(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
