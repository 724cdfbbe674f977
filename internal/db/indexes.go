package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on for uniqueness
// guarantees and geo queries. Safe to call on every startup; CreateMany is a
// no-op for indexes that already exist.
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)

	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		"profiles": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "geo_point", Value: "2dsphere"}}},
		},
		"listings": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "accepts_trades", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		// One swipe per user per listing. Re-swipes surface as duplicate key
		// errors instead of duplicate rows.
		"swipe_actions": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}}, Options: unique},
		},
		"superlikes": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}}, Options: unique},
		},
		// One counter row per user per calendar day; $inc upserts race on the
		// same key and the loser sees 11000.
		"daily_swipes": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "swipe_date", Value: 1}}, Options: unique},
		},
		"daily_superlikes": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "superlike_date", Value: 1}}, Options: unique},
		},
		// A user pair matches at most once.
		"matches": {
			{Keys: bson.D{{Key: "user_one_id", Value: 1}, {Key: "user_two_id", Value: 1}}, Options: unique},
		},
		"subscriptions": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		},
		"conversations": {
			{Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "match_id", Value: 1}}, Options: unique},
		},
		"messages": {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"sales_commissions": {
			{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
