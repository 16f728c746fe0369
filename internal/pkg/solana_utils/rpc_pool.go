package solana_utils

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/mroth/weightedrand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCPool spreads calls over several RPC endpoints by weight.
type RPCPool struct {
	chooser *weightedrand.Chooser[*rpc.Client, int]
}

// ParseEndpoints reads a comma separated list of "url" or "url|weight" entries.
// Entries without a weight count as weight 1.
func ParseEndpoints(raw string) ([]weightedrand.Choice[string, int], error) {
	choices := []weightedrand.Choice[string, int]{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		url, weight := entry, 1
		if i := strings.LastIndex(entry, "|"); i >= 0 {
			w, err := strconv.Atoi(entry[i+1:])
			if err != nil || w < 0 {
				return nil, errors.Errorf("invalid rpc weight in %q", entry)
			}
			url, weight = entry[:i], w
		}
		choices = append(choices, weightedrand.NewChoice(url, weight))
	}
	if len(choices) == 0 {
		return nil, errors.New("no rpc endpoints configured")
	}
	return choices, nil
}

func NewRPCPool(raw string) (*RPCPool, error) {
	endpoints, err := ParseEndpoints(raw)
	if err != nil {
		return nil, err
	}

	choices := make([]weightedrand.Choice[*rpc.Client, int], 0, len(endpoints))
	for _, endpoint := range endpoints {
		choices = append(choices, weightedrand.NewChoice(rpc.New(endpoint.Item), endpoint.Weight))
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, errors.Wrap(err, "rpc pool")
	}
	return &RPCPool{chooser}, nil
}

func (p *RPCPool) client() *rpc.Client {
	return p.chooser.Pick()
}

func (p *RPCPool) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return p.client().GetLatestBlockhash(ctx, commitment)
}

func (p *RPCPool) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return p.client().SendTransactionWithOpts(ctx, tx, opts)
}

func (p *RPCPool) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return p.client().GetSignatureStatuses(ctx, searchTransactionHistory, sigs...)
}

func (p *RPCPool) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return p.client().GetBlockHeight(ctx, commitment)
}

func (p *RPCPool) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return p.client().GetBalance(ctx, account, commitment)
}
