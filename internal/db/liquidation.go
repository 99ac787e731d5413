package db

import (
	"context"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindLiquidationRecords returns the newest records first. An empty owner
// matches every account.
func (db *Database) FindLiquidationRecords(
	ctx context.Context, owner string, limit int64,
) ([]*model.LiquidationRecord, error) {
	filter := bson.M{}
	if owner != "" {
		filter["owner"] = owner
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := db.collection(model.LiquidationRecordCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*model.LiquidationRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
