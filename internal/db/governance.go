package db

import (
	"context"
	"errors"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) ApplyGovernanceUpdate(
	ctx context.Context, expectedVersion uint64, update *model.GovernanceUpdateDocument,
) (*model.GlobalStateDocument, error) {
	if update == nil {
		return nil, errors.New("nil governance update")
	}

	result, err := db.withTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		_, err := db.collection(model.GovernanceUpdateCollection).InsertOne(sessCtx, update)
		if err != nil {
			if isDuplicateKey(err) {
				return nil, &DuplicateKeyError{
					Key:     update.ProposalID,
					Message: "governance proposal already applied",
				}
			}
			return nil, err
		}

		return db.casGlobalState(sessCtx, db.collection(model.GlobalStateCollection), expectedVersion, bson.M{
			"$set": bson.M{"allowed_delta_threshold": update.NewThreshold},
			"$inc": bson.M{"version": 1},
		})
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.GlobalStateDocument), nil
}

func (db *Database) FindGovernanceUpdates(ctx context.Context, limit int64) ([]*model.GovernanceUpdateDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "applied_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := db.collection(model.GovernanceUpdateCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var updates []*model.GovernanceUpdateDocument
	if err := cursor.All(ctx, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
