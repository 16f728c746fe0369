package solana_utils

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const DefaultPollInterval = 2 * time.Second

var (
	ErrConfirmTimeout = errors.New("transaction confirmation timed out")
	errNotConfirmed   = errors.New("transaction not confirmed yet")
)

// TransactionError is an on-chain execution failure reported by the cluster.
type TransactionError struct {
	Signature solana.Signature
	Detail    any
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Detail)
}

type SignatureStatusGetter interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// WaitForConfirmation polls until sig reaches the confirmed commitment. It returns
// *TransactionError when the transaction executed and failed, and ErrConfirmTimeout when the
// outcome is still unknown at the deadline.
func WaitForConfirmation(ctx context.Context, client SignatureStatusGetter, sig solana.Signature, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := uint(timeout/interval) + 1
	err := retry.Do(
		func() error {
			err := checkStatus(ctx, client, sig)
			var txErr *TransactionError
			if errors.As(err, &txErr) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}

	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr
	}
	if errors.Is(err, errNotConfirmed) || errors.Is(err, context.DeadlineExceeded) {
		return ErrConfirmTimeout
	}
	// transport errors right before the deadline leave the outcome unknown as well
	if ctx.Err() != nil {
		return errors.Wrap(ErrConfirmTimeout, err.Error())
	}
	return err
}

// SignatureConfirmed looks sig up once. It reports false with no error while the cluster has
// not confirmed it, and *TransactionError when it executed and failed.
func SignatureConfirmed(ctx context.Context, client SignatureStatusGetter, sig solana.Signature) (bool, error) {
	err := checkStatus(ctx, client, sig)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotConfirmed):
		return false, nil
	}
	return false, err
}

func checkStatus(ctx context.Context, client SignatureStatusGetter, sig solana.Signature) error {
	out, err := client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return errNotConfirmed
	}

	status := out.Value[0]
	if status.Err != nil {
		return &TransactionError{Signature: sig, Detail: status.Err}
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return nil
	}
	return errNotConfirmed
}
