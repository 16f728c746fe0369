package datastore

import (
	"context"
	"time"

	"gaslessrelay/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableRelayRecord(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.RelayRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.RelayRecord)(nil)).Index("index_relay_record_sender").IfNotExists().Column("sender", "created_at").Exec(ctx)
	return err
}

// UpsertRelayRecord inserts the attempt or moves an existing one to its latest status.
func UpsertRelayRecord(ctx context.Context, db bun.IDB, record *models.RelayRecord) (*models.RelayRecord, error) {
	record.UpdatedAt = time.Now()
	_, err := db.NewInsert().
		Model(record).
		On("CONFLICT (signature) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("cause = EXCLUDED.cause").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func FindRelayRecord(ctx context.Context, db bun.IDB, signature string) (*models.RelayRecord, error) {
	var record models.RelayRecord
	err := db.NewSelect().Model(&record).Where("signature = ?", signature).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func FindRelayRecordsBySender(ctx context.Context, db bun.IDB, sender string, limit int) ([]*models.RelayRecord, error) {
	var records []*models.RelayRecord
	err := db.NewSelect().Model(&records).Where("sender = ?", sender).Order("created_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
