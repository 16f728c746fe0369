package datastore

import (
	"context"

	"gaslessrelay/internal/models"

	"github.com/uptrace/bun"
)

// Repository adapts the table functions to the service interfaces.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db}
}

func (r *Repository) SaveRelayRecord(ctx context.Context, record *models.RelayRecord) error {
	_, err := UpsertRelayRecord(ctx, r.db, record)
	return err
}

func (r *Repository) CreateEscrowTopUp(ctx context.Context, topUp *models.EscrowTopUp) error {
	_, err := CreateEscrowTopUp(ctx, r.db, topUp)
	return err
}

func (r *Repository) CreateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error {
	_, err := CreateFeeInvoice(ctx, r.db, invoice)
	return err
}

func (r *Repository) FindFeeInvoice(ctx context.Context, payload string) (*models.FeeInvoice, error) {
	return FindFeeInvoice(ctx, r.db, payload)
}

func (r *Repository) UpdateFeeInvoice(ctx context.Context, invoice *models.FeeInvoice) error {
	_, err := UpdateFeeInvoice(ctx, r.db, invoice)
	return err
}

func (r *Repository) FindFeeInvoicesByStatus(ctx context.Context, status string, limit int) ([]models.FeeInvoice, error) {
	return FindFeeInvoicesByStatus(ctx, r.db, status, limit)
}

func Migrate(ctx context.Context, db *bun.DB) error {
	for _, create := range []func(context.Context, *bun.DB) error{
		CreateTableRelayRecord,
		CreateTableEscrowTopUp,
		CreateTableFeeInvoice,
	} {
		if err := create(ctx, db); err != nil {
			return err
		}
	}
	return nil
}
