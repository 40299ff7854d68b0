package store

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index listed in spec.md §6. It runs
// non-blocking from the caller's perspective (each CreateMany call
// returns once Mongo accepts the request) and is idempotent: a
// pre-existing index with compatible options is treated as success, and
// an incompatible pre-existing index (IndexOptionsConflict/
// IndexKeySpecsConflict, Mongo codes 85/86) is logged as a warning rather
// than surfaced as a startup failure, per spec.md §9's "index creation is
// best-effort" note.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollStockBasics: {
			{Keys: bson.D{{Key: "code", Value: 1}, {Key: "source", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "code", Value: 1}}},
			{Keys: bson.D{{Key: "source", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "industry", Value: 1}}},
			{Keys: bson.D{{Key: "market", Value: 1}}},
			{Keys: bson.D{{Key: "total_mv", Value: -1}}},
			{Keys: bson.D{{Key: "circ_mv", Value: -1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "turnover_rate", Value: -1}}},
			{Keys: bson.D{{Key: "pe", Value: 1}}},
			{Keys: bson.D{{Key: "pb", Value: 1}}},
		},
		CollMarketQuotes: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "updated_at", Value: 1}}},
		},
		CollHistoricalBars: {
			{
				Keys: bson.D{
					{Key: "symbol", Value: 1},
					{Key: "trade_date", Value: 1},
					{Key: "data_source", Value: 1},
					{Key: "period", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "symbol", Value: 1}}},
			{Keys: bson.D{{Key: "trade_date", Value: -1}}},
			{Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "trade_date", Value: -1}}},
		},
		CollAnalysisTasks: {
			{Keys: bson.D{{Key: "task_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		CollSyncStatus: {
			{Keys: bson.D{{Key: "job", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		CollDataSourceGrp: {
			{
				Keys: bson.D{{Key: "market_category_id", Value: 1}, {Key: "data_source_name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collName, models := range specs {
		coll := s.db.Collection(collName)
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			if isIndexConflict(err) {
				s.log.Warn().Err(err).Str("collection", collName).Msg("index already exists with different options, treating as success")
				continue
			}
			return err
		}
	}
	return nil
}

func isIndexConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "IndexOptionsConflict") ||
		strings.Contains(msg, "IndexKeySpecsConflict") ||
		strings.Contains(msg, "already exists with different options")
}
