package model

import (
	"context"
	"fmt"
	"time"

	"github.com/dnt-protocol/dnt-staking-engine/internal/config"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type index struct {
	Keys   bson.D
	Unique bool
}

var collections = map[string][]index{
	GlobalStateCollection: nil,
	// ranking order used by the risk monitor
	UserAccountCollection: {
		{Keys: bson.D{{Key: "amount", Value: -1}, {Key: "staked_since", Value: 1}}},
	},
	LiquidationRecordCollection: {
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	},
	GovernanceUpdateCollection: {
		{Keys: bson.D{{Key: "proposal_id", Value: 1}}, Unique: true},
	},
}

// Setup creates the collections and indexes used by the engine. It is safe to
// run on every start.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOpts := options.Client().ApplyURI(cfg.Address).SetDirect(cfg.DirectConnection)
	if cfg.Username != "" {
		clientOpts = clientOpts.SetAuth(credential)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to disconnect setup client")
		}
	}()

	database := client.Database(cfg.DbName)

	// Create a context with timeout
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for collection, idxs := range collections {
		createCollection(ctx, database, collection)
		for _, idx := range idxs {
			if err := createIndex(ctx, database, collection, idx); err != nil {
				return err
			}
		}
	}

	log.Ctx(ctx).Info().Msg("Collections and Indexes created successfully.")
	return nil
}

func createCollection(ctx context.Context, database *mongo.Database, collectionName string) {
	// Check if the collection already exists.
	if _, err := database.Collection(collectionName).Indexes().List(ctx); err == nil {
		log.Ctx(ctx).Debug().Msgf("Collection maybe already exists: %s, skip the rest of info", collectionName)
		return
	}

	// Create the collection.
	if err := database.CreateCollection(ctx, collectionName); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to create collection: " + collectionName)
		return
	}

	log.Ctx(ctx).Debug().Msg("Collection created successfully: " + collectionName)
}

func createIndex(ctx context.Context, database *mongo.Database, collectionName string, idx index) error {
	indexModel := mongo.IndexModel{
		Keys:    idx.Keys,
		Options: options.Index().SetUnique(idx.Unique),
	}

	if _, err := database.Collection(collectionName).Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collectionName, err)
	}

	log.Ctx(ctx).Debug().Msg("Index created successfully on collection: " + collectionName)
	return nil
}
