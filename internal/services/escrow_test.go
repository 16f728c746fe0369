package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/samber/do"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gaslessrelay/internal/pkg/solana_utils"
)

func TestToLamports(t *testing.T) {
	cases := []struct {
		amount  string
		want    uint64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.5", 500_000_000, false},
		{"0.0000000019", 1, false},
		{"0.0000000001", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"100000000000", 0, true},
	}
	for _, tc := range cases {
		lamports, err := ToLamports(decimal.RequireFromString(tc.amount))
		if tc.wantErr {
			require.Error(t, err, tc.amount)
			continue
		}
		require.NoError(t, err, tc.amount)
		require.Equal(t, tc.want, lamports, tc.amount)
	}
}

func TestEscrowAddress(t *testing.T) {
	env := newRelayEnv(t)
	escrow, err := do.Invoke[*ServiceEscrow](env.container)
	require.NoError(t, err)

	owner := solana.NewWallet().PublicKey()
	address, err := escrow.Address(owner, "alice_tg")
	require.NoError(t, err)

	deposit, bump, err := solana_utils.DeriveDeposit(owner, "alice_tg", solana_utils.TransferProgramID)
	require.NoError(t, err)
	require.Equal(t, deposit.String(), address.Deposit)
	require.Equal(t, bump, address.DepositBump)

	_, err = escrow.Address(owner, "a")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEscrowTopUp(t *testing.T) {
	env := newRelayEnv(t)
	escrow, err := do.Invoke[*ServiceEscrow](env.container)
	require.NoError(t, err)

	depositor := solana_utils.NewLocalWallet(solana.NewWallet().PrivateKey)
	require.True(t, escrow.TopUp(context.Background(), depositor, "alice_tg", decimal.RequireFromString("0.25")))

	require.Len(t, env.rpc.sent, 1)
	tx := env.rpc.sent[0]
	require.NoError(t, tx.VerifySignatures())
	require.Equal(t, depositor.PublicKey(), tx.Message.AccountKeys[0])
	programID := tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex]
	require.Equal(t, solana_utils.TransferProgramID, programID)

	require.Len(t, env.repo.topUps, 1)
	row := env.repo.topUps[0]
	require.True(t, row.Success)
	require.Equal(t, TopUpSourceAPI, row.Source)
	require.EqualValues(t, 250_000_000, row.Lamports)
	require.NotNil(t, row.Signature)
}

func TestEscrowTopUpFailures(t *testing.T) {
	cases := []struct {
		name     string
		username string
		amount   string
		sendErr  error
		recorded bool
	}{
		{"invalid username", "x", "1", nil, false},
		{"below one lamport", "alice_tg", "0.0000000001", nil, true},
		{"send error", "alice_tg", "1", errors.New("insufficient funds for fee"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newRelayEnv(t)
			env.rpc.sendErr = tc.sendErr
			escrow, err := do.Invoke[*ServiceEscrow](env.container)
			require.NoError(t, err)

			depositor := solana_utils.NewLocalWallet(solana.NewWallet().PrivateKey)
			require.False(t, escrow.TopUp(context.Background(), depositor, tc.username, decimal.RequireFromString(tc.amount)))

			if !tc.recorded {
				require.Empty(t, env.repo.topUps)
				return
			}
			require.Len(t, env.repo.topUps, 1)
			require.False(t, env.repo.topUps[0].Success)
		})
	}
}

func TestEscrowAttemptState(t *testing.T) {
	failed := &rpc.SignatureStatusesResult{Err: map[string]any{"InstructionError": []any{0, "InsufficientFunds"}}}

	cases := []struct {
		name        string
		status      *rpc.SignatureStatusesResult
		blockHeight uint64
		want        TopUpState
	}{
		{"landed", confirmedStatus(), fakeLastValidBlockHeight + 5, TopUpLanded},
		{"failed on chain", failed, 10, TopUpDropped},
		{"unseen before expiry", nil, fakeLastValidBlockHeight, TopUpInFlight},
		{"unseen after expiry", nil, fakeLastValidBlockHeight + 1, TopUpDropped},
		{"processed only", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}, 10, TopUpInFlight},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newRelayEnv(t)
			env.rpc.status = tc.status
			env.rpc.blockHeight = tc.blockHeight
			escrow, err := do.Invoke[*ServiceEscrow](env.container)
			require.NoError(t, err)

			sig := solana.SignatureFromBytes(make([]byte, solana.SignatureLength))
			state, err := escrow.AttemptState(context.Background(), TopUpAttempt{Signature: sig.String(), LastValidBlockHeight: fakeLastValidBlockHeight})
			require.NoError(t, err)
			require.Equal(t, tc.want, state)
		})
	}

	env := newRelayEnv(t)
	escrow, err := do.Invoke[*ServiceEscrow](env.container)
	require.NoError(t, err)
	_, err = escrow.AttemptState(context.Background(), TopUpAttempt{Signature: "not-a-signature"})
	require.Error(t, err)
}
