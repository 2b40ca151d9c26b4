package database

import (
	"context"
	"fmt"
	"time"

	"quiz-portal-go/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TogglesCollection is the name of the toggles collection
const TogglesCollection = "toggles"

// MongoToggleRepository reads and writes the single app toggles document
type MongoToggleRepository struct {
	collection *mongo.Collection
}

// NewMongoToggleRepository creates a new MongoDB toggle repository
func NewMongoToggleRepository(db *MongoDB) *MongoToggleRepository {
	return &MongoToggleRepository{
		collection: db.GetCollection(TogglesCollection),
	}
}

// Get reads the toggles document. An absent document is not an error:
// callers get an empty Toggles whose accessors apply the defaults
// (leaderboard live, rounds off).
func (r *MongoToggleRepository) Get(ctx context.Context) (*models.Toggles, error) {
	var toggles models.Toggles
	err := r.collection.FindOne(ctx, bson.M{"_id": models.TogglesDocID}).Decode(&toggles)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &models.Toggles{ID: models.TogglesDocID}, nil
		}
		return nil, err
	}
	return &toggles, nil
}

// SetLeaderboardLive upserts the live flag
func (r *MongoToggleRepository) SetLeaderboardLive(ctx context.Context, live bool) error {
	update := bson.M{"$set": bson.M{"leaderboardLive": live, "lastUpdated": time.Now()}}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": models.TogglesDocID}, update, opts)
	return err
}

// SetRound upserts a single round toggle
func (r *MongoToggleRepository) SetRound(ctx context.Context, roundKey string, active bool) error {
	field := fmt.Sprintf("rounds.%s", roundKey)
	update := bson.M{"$set": bson.M{field: active, "lastUpdated": time.Now()}}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": models.TogglesDocID}, update, opts)
	return err
}
