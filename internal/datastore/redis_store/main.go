package redis_store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gaslessrelay/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrOutcomeNotFound = errors.New("relay outcome not found")

func dbKeyRelayOutcome(signature string) string {
	return fmt.Sprintf("relay:outcome:%s", signature)
}

func dbKeyInvoicePayload(payload string) string {
	return fmt.Sprintf("fee:invoice:%s", payload)
}

func GetRelayOutcome(ctx context.Context, cmd redis.Cmdable, signature string) (*models.RelayOutcome, error) {
	b, err := cmd.Get(ctx, dbKeyRelayOutcome(signature)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOutcomeNotFound
	}
	if err != nil {
		return nil, err
	}

	var v *models.RelayOutcome
	err = msgpack.Unmarshal(b, &v)
	return v, err
}

func SaveRelayOutcome(ctx context.Context, cmd redis.Cmdable, signature string, v *models.RelayOutcome, ttl time.Duration) error {
	if signature == "" || v == nil {
		return errors.New("invalid relay outcome")
	}

	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return cmd.Set(ctx, dbKeyRelayOutcome(signature), b, ttl).Err()
}

// MarkInvoicePayload remembers an issued invoice payload until ttl so pre-checkout can answer
// without a database round trip.
func MarkInvoicePayload(ctx context.Context, cmd redis.Cmdable, payload string, ttl time.Duration) error {
	return cmd.Set(ctx, dbKeyInvoicePayload(payload), 1, ttl).Err()
}

func HasInvoicePayload(ctx context.Context, cmd redis.Cmdable, payload string) (bool, error) {
	n, err := cmd.Exists(ctx, dbKeyInvoicePayload(payload)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OutcomeStore keeps relay outcomes keyed by transaction signature.
type OutcomeStore struct {
	client redis.UniversalClient
}

func NewOutcomeStore(client redis.UniversalClient) *OutcomeStore {
	return &OutcomeStore{client}
}

func (s *OutcomeStore) GetOutcome(ctx context.Context, signature string) (*models.RelayOutcome, error) {
	return GetRelayOutcome(ctx, s.client, signature)
}

func (s *OutcomeStore) SaveOutcome(ctx context.Context, signature string, outcome *models.RelayOutcome, ttl time.Duration) error {
	return SaveRelayOutcome(ctx, s.client, signature, outcome, ttl)
}
