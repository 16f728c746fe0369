package solana_utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type statusSequence struct {
	calls    atomic.Int32
	statuses []*rpc.SignatureStatusesResult
}

func (s *statusSequence) GetSignatureStatuses(_ context.Context, _ bool, _ ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.statuses) {
		n = len(s.statuses) - 1
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{s.statuses[n]}}, nil
}

func TestWaitForConfirmation(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	t.Run("confirmed after processing", func(t *testing.T) {
		client := &statusSequence{statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		}}
		err := WaitForConfirmation(context.Background(), client, sig, time.Second, time.Millisecond)
		require.NoError(t, err)
		require.EqualValues(t, 3, client.calls.Load())
	})

	t.Run("finalized counts as confirmed", func(t *testing.T) {
		client := &statusSequence{statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusFinalized},
		}}
		require.NoError(t, WaitForConfirmation(context.Background(), client, sig, time.Second, time.Millisecond))
	})

	t.Run("execution failure stops polling", func(t *testing.T) {
		client := &statusSequence{statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6007}}}},
		}}
		err := WaitForConfirmation(context.Background(), client, sig, time.Second, time.Millisecond)

		var txErr *TransactionError
		require.ErrorAs(t, err, &txErr)
		require.Equal(t, sig, txErr.Signature)
		require.EqualValues(t, 1, client.calls.Load())
	})

	t.Run("still pending at deadline", func(t *testing.T) {
		client := &statusSequence{statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
		}}
		err := WaitForConfirmation(context.Background(), client, sig, 30*time.Millisecond, 5*time.Millisecond)
		require.ErrorIs(t, err, ErrConfirmTimeout)
	})
}

func TestSignatureConfirmed(t *testing.T) {
	sig := solana.Signature{4, 5, 6}

	cases := []struct {
		name    string
		status  *rpc.SignatureStatusesResult
		want    bool
		wantErr bool
	}{
		{name: "unknown", status: nil},
		{name: "processed", status: &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}},
		{name: "confirmed", status: &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, want: true},
		{name: "finalized", status: &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, want: true},
		{name: "failed", status: &rpc.SignatureStatusesResult{Err: "InsufficientFundsForFee"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &statusSequence{statuses: []*rpc.SignatureStatusesResult{tc.status}}
			ok, err := SignatureConfirmed(context.Background(), client, sig)
			require.Equal(t, tc.want, ok)
			if tc.wantErr {
				var txErr *TransactionError
				require.ErrorAs(t, err, &txErr)
				return
			}
			require.NoError(t, err)
			require.EqualValues(t, 1, client.calls.Load())
		})
	}
}
