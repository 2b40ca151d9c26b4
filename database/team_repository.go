package database

import (
	"context"
	"time"

	"quiz-portal-go/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TeamsCollection is the name of the teams collection
const TeamsCollection = "teams"

// MongoTeamRepository implements team persistence on MongoDB
type MongoTeamRepository struct {
	collection *mongo.Collection
}

// NewMongoTeamRepository creates a new MongoDB team repository
func NewMongoTeamRepository(db *MongoDB) *MongoTeamRepository {
	return &MongoTeamRepository{
		collection: db.GetCollection(TeamsCollection),
	}
}

// Create inserts a new team. A unique-index violation on teamName or
// teamCode surfaces as ErrDuplicate.
func (r *MongoTeamRepository) Create(ctx context.Context, team *models.Team) error {
	team.CreatedAt = time.Now()
	team.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, team)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a team by its ID
func (r *MongoTeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// GetByName retrieves a team by its exact name
func (r *MongoTeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	var team models.Team
	err := r.collection.FindOne(ctx, bson.M{"teamName": name}).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// GetByCode retrieves a team by its invite code
func (r *MongoTeamRepository) GetByCode(ctx context.Context, code string) (*models.Team, error) {
	var team models.Team
	err := r.collection.FindOne(ctx, bson.M{"teamCode": code}).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// AddMember appends a member snapshot in a single conditional update.
// The filter asserts the user is not already on the roster and the
// roster is below maxSize, so two concurrent joins can never push a
// team past its cap. Returns false when the condition did not hold;
// the caller re-reads the team to report the precise conflict.
func (r *MongoTeamRepository) AddMember(ctx context.Context, teamID string, member models.TeamMember) (bool, error) {
	filter := bson.M{
		"_id":         teamID,
		"members.uid": bson.M{"$ne": member.UserID},
		"$expr":       bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$maxSize"}},
	}
	update := bson.M{
		"$push": bson.M{"members": member},
		"$set":  bson.M{"lastUpdated": time.Now()},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RemoveMember pulls a member snapshot off the roster
func (r *MongoTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	update := bson.M{
		"$pull": bson.M{"members": bson.M{"uid": userID}},
		"$set":  bson.M{"lastUpdated": time.Now()},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": teamID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMemberSnapshot patches the cached username/avatar of one roster
// entry so the denormalized copy tracks the user document.
func (r *MongoTeamRepository) UpdateMemberSnapshot(ctx context.Context, teamID, userID string, update models.ProfileUpdate) error {
	fields := bson.M{"lastUpdated": time.Now()}
	if update.Username != nil {
		fields["members.$[m].username"] = *update.Username
	}
	if update.Avatar != nil {
		fields["members.$[m].avatar"] = *update.Avatar
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"m.uid": userID}},
	})

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{"$set": fields}, opts)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPoints overwrites the cached aggregate point total
func (r *MongoTeamRepository) SetPoints(ctx context.Context, teamID string, points int) error {
	update := bson.M{"$set": bson.M{"points": points, "lastUpdated": time.Now()}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": teamID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMaxSize updates the roster cap
func (r *MongoTeamRepository) SetMaxSize(ctx context.Context, teamID string, maxSize int) error {
	update := bson.M{"$set": bson.M{"maxSize": maxSize, "lastUpdated": time.Now()}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": teamID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLeader reassigns team leadership
func (r *MongoTeamRepository) SetLeader(ctx context.Context, teamID, leaderID string) error {
	update := bson.M{"$set": bson.M{"leaderId": leaderID, "lastUpdated": time.Now()}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": teamID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a team document
func (r *MongoTeamRepository) Delete(ctx context.Context, teamID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": teamID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TopTeams returns the n highest-scoring teams. Ties break by creation
// time ascending so the ranking is stable.
func (r *MongoTeamRepository) TopTeams(ctx context.Context, n int) ([]models.Team, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "points", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetLimit(int64(n))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	teams := make([]models.Team, 0, n)
	if err := cursor.All(ctx, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// EnsureIndexes creates the unique indexes backing name and invite-code
// uniqueness, plus the leaderboard sort index.
func (r *MongoTeamRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "teamName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "teamCode", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "points", Value: -1}, {Key: "createdAt", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
