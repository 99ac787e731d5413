package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dnt-protocol/dnt-staking-engine/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) InitGlobalState(ctx context.Context, state *model.GlobalStateDocument) error {
	if state == nil {
		return errors.New("nil global state")
	}
	doc := state.Clone()
	doc.ID = model.GlobalStateID

	_, err := db.collection(model.GlobalStateCollection).InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return &DuplicateKeyError{
				Key:     model.GlobalStateID,
				Message: "global state already initialized",
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetGlobalState(ctx context.Context) (*model.GlobalStateDocument, error) {
	var state model.GlobalStateDocument
	err := db.collection(model.GlobalStateCollection).
		FindOne(ctx, bson.M{"_id": model.GlobalStateID}).
		Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.GlobalStateID,
				Message: "global state is not initialized",
			}
		}
		return nil, err
	}
	return &state, nil
}

func (db *Database) UpdateGlobalState(
	ctx context.Context, expectedVersion uint64, opts ...GlobalStateOption,
) (*model.GlobalStateDocument, error) {
	u := newGlobalStateUpdate(opts)

	setFields := bson.M{}
	incFields := bson.M{"version": 1}
	if u.rewardIndex != nil {
		setFields["reward_index"] = *u.rewardIndex
		incFields["reward_epoch"] = 1
	}
	if u.lastUpdate != nil {
		setFields["last_update"] = *u.lastUpdate
	}
	if u.lastRebalance != nil {
		setFields["last_rebalance"] = *u.lastRebalance
	}

	update := bson.M{"$inc": incFields}
	if len(setFields) > 0 {
		update["$set"] = setFields
	}

	return db.casGlobalState(ctx, db.collection(model.GlobalStateCollection), expectedVersion, update)
}

func (db *Database) casGlobalState(
	ctx context.Context, coll *mongo.Collection, expectedVersion uint64, update bson.M,
) (*model.GlobalStateDocument, error) {
	filter := bson.M{
		"_id":     model.GlobalStateID,
		"version": expectedVersion,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var state model.GlobalStateDocument
	err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &ConflictError{
				Key:     model.GlobalStateID,
				Message: fmt.Sprintf("global state version %d is stale", expectedVersion),
			}
		}
		return nil, err
	}
	return &state, nil
}
