package datastore

import (
	"context"
	"time"

	"gaslessrelay/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableFeeInvoice(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.FeeInvoice)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.FeeInvoice)(nil)).Index("index_fee_invoice_user").IfNotExists().Column("telegram_user_id").Exec(ctx)
	return err
}

func CreateFeeInvoice(ctx context.Context, db bun.IDB, invoice *models.FeeInvoice) (*models.FeeInvoice, error) {
	_, err := db.NewInsert().Model(invoice).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func FindFeeInvoice(ctx context.Context, db bun.IDB, payload string) (*models.FeeInvoice, error) {
	var invoice models.FeeInvoice
	err := db.NewSelect().Model(&invoice).Where("payload = ?", payload).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func UpdateFeeInvoice(ctx context.Context, db bun.IDB, invoice *models.FeeInvoice) (*models.FeeInvoice, error) {
	invoice.UpdatedAt = time.Now()
	_, err := db.NewUpdate().Model(invoice).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func FindFeeInvoicesByStatus(ctx context.Context, db bun.IDB, status string, limit int) ([]models.FeeInvoice, error) {
	var invoices []models.FeeInvoice
	err := db.NewSelect().Model(&invoices).Where("status = ?", status).Order("updated_at ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
