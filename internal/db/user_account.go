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

// rankingSort is the order in which accounts are considered for liquidation.
var rankingSort = bson.D{
	{Key: "amount", Value: -1},
	{Key: "staked_since", Value: 1},
	{Key: "_id", Value: 1},
}

func (db *Database) GetUserAccount(ctx context.Context, owner string) (*model.UserAccountDocument, error) {
	var account model.UserAccountDocument
	err := db.collection(model.UserAccountCollection).
		FindOne(ctx, bson.M{"_id": owner}).
		Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     owner,
				Message: "user account not found",
			}
		}
		return nil, err
	}
	return &account, nil
}

func (db *Database) FindStakedAccounts(ctx context.Context) ([]*model.UserAccountDocument, error) {
	filter := bson.M{"amount": bson.M{"$gt": 0}}
	opts := options.Find().SetSort(rankingSort)

	cursor, err := db.collection(model.UserAccountCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var accounts []*model.UserAccountDocument
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (db *Database) CommitAccount(ctx context.Context, commit *AccountCommit) (*model.GlobalStateDocument, error) {
	if err := commit.validate(); err != nil {
		return nil, err
	}
	account := commit.Account.Clone()
	account.Version = commit.PrevVersion + 1

	result, err := db.withTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		if err := db.writeAccount(sessCtx, account, commit.PrevVersion); err != nil {
			return nil, err
		}

		state, err := db.moveTotalStaked(sessCtx, commit)
		if err != nil {
			return nil, err
		}

		if commit.Liquidation != nil {
			_, err := db.collection(model.LiquidationRecordCollection).InsertOne(sessCtx, commit.Liquidation)
			if err != nil {
				return nil, fmt.Errorf("failed to store liquidation record: %w", err)
			}
		}
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	commit.Account.Version = account.Version
	return result.(*model.GlobalStateDocument), nil
}

func (db *Database) writeAccount(ctx context.Context, account *model.UserAccountDocument, prevVersion uint64) error {
	coll := db.collection(model.UserAccountCollection)

	if prevVersion == 0 {
		_, err := coll.InsertOne(ctx, account)
		if err != nil {
			if isDuplicateKey(err) {
				return &ConflictError{
					Key:     account.Owner,
					Message: "user account was created concurrently",
				}
			}
			return err
		}
		return nil
	}

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": account.Owner, "version": prevVersion}, account)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &ConflictError{
			Key:     account.Owner,
			Message: fmt.Sprintf("user account version %d is stale", prevVersion),
		}
	}
	return nil
}

// moveTotalStaked applies the signed staked delta, and the accrual when
// present, if the reward epoch has not moved since the account was settled.
func (db *Database) moveTotalStaked(ctx context.Context, commit *AccountCommit) (*model.GlobalStateDocument, error) {
	filter := bson.M{
		"_id":          model.GlobalStateID,
		"reward_epoch": commit.RewardEpoch,
	}
	if commit.StakedDecrease > commit.StakedIncrease {
		filter["total_staked"] = bson.M{"$gte": commit.StakedDecrease - commit.StakedIncrease}
	}
	inc := bson.M{
		"total_staked": commit.stakedDelta(),
		"version":      1,
	}
	update := bson.M{"$inc": inc}
	if a := commit.Accrual; a != nil {
		filter["version"] = a.GlobalVersion
		set := bson.M{"last_update": a.LastUpdate}
		if a.RewardIndex != "" {
			set["reward_index"] = a.RewardIndex
			inc["reward_epoch"] = 1
		}
		update["$set"] = set
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var state model.GlobalStateDocument
	err := db.collection(model.GlobalStateCollection).
		FindOneAndUpdate(ctx, filter, update, opts).
		Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &ConflictError{
				Key:     model.GlobalStateID,
				Message: fmt.Sprintf("global state moved since reward epoch %d", commit.RewardEpoch),
			}
		}
		return nil, err
	}
	return &state, nil
}

func (db *Database) SumAccountAmounts(ctx context.Context) (uint64, error) {
	pipeline := bson.A{
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := db.collection(model.UserAccountCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var total uint64
	if cursor.Next(ctx) {
		var result struct {
			Total uint64 `bson:"total"`
		}
		if err := cursor.Decode(&result); err != nil {
			return 0, err
		}
		total = result.Total
	}
	return total, cursor.Err()
}

func (db *Database) DeleteDustAccounts(ctx context.Context) (int64, error) {
	res, err := db.collection(model.UserAccountCollection).DeleteMany(ctx, bson.M{"amount": 0})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
