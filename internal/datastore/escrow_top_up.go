package datastore

import (
	"context"

	"gaslessrelay/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func CreateTableEscrowTopUp(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.EscrowTopUp)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.EscrowTopUp)(nil)).Index("index_escrow_top_up_deposit").IfNotExists().Column("deposit_address").Exec(ctx)
	return err
}

func CreateEscrowTopUp(ctx context.Context, db bun.IDB, topUp *models.EscrowTopUp) (*models.EscrowTopUp, error) {
	if topUp.ID == "" {
		topUp.ID = uuid.NewString()
	}
	_, err := db.NewInsert().Model(topUp).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return topUp, nil
}
