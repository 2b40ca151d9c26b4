package database

import (
	"context"

	"quiz-portal-go/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names for round content
const (
	RoundConfigsCollection = "round_configs"
	QuestionsCollection    = "questions"
)

// MongoRoundRepository reads round configuration and question content
type MongoRoundRepository struct {
	configs   *mongo.Collection
	questions *mongo.Collection
}

// NewMongoRoundRepository creates a new MongoDB round repository
func NewMongoRoundRepository(db *MongoDB) *MongoRoundRepository {
	return &MongoRoundRepository{
		configs:   db.GetCollection(RoundConfigsCollection),
		questions: db.GetCollection(QuestionsCollection),
	}
}

// GetConfig retrieves a round config by round key (e.g. "round3")
func (r *MongoRoundRepository) GetConfig(ctx context.Context, roundKey string) (*models.RoundConfig, error) {
	var cfg models.RoundConfig
	err := r.configs.FindOne(ctx, bson.M{"_id": roundKey}).Decode(&cfg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// ListQuestions returns a round's questions in display order
func (r *MongoRoundRepository) ListQuestions(ctx context.Context, roundKey string) ([]models.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	cursor, err := r.questions.Find(ctx, bson.M{"round": roundKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []models.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
