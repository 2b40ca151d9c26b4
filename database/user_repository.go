package database

import (
	"context"
	"strings"
	"time"

	"quiz-portal-go/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCollection is the name of the users collection
const UsersCollection = "users"

// MongoUserRepository implements user persistence on MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB user repository
func NewMongoUserRepository(db *MongoDB) *MongoUserRepository {
	return &MongoUserRepository{
		collection: db.GetCollection(UsersCollection),
	}
}

// GetByID retrieves a user by their ID
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// emailFilter matches the stored email exactly. Emails are lowercased
// at signup, so lowercasing the input gives case-insensitive lookup; a
// regex would break on addresses with metacharacters like "+".
func emailFilter(email string) bson.M {
	return bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
}

// GetByEmail retrieves a user by their email address (case-insensitive)
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, emailFilter(email)).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by their display name
func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByResetToken retrieves a user by their password reset token
func (r *MongoUserRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"resetToken": token}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// userReplaceUpdate builds the update document for Update. Cleared
// optional fields marshal away under omitempty, so they must be unset
// explicitly or a used reset token would survive in the store until
// its expiry.
func userReplaceUpdate(user *models.User) bson.M {
	update := bson.M{"$set": user}
	unset := bson.M{}
	if user.ResetToken == "" {
		unset["resetToken"] = ""
		unset["resetTokenExpiry"] = ""
	}
	if user.TeamID == "" {
		unset["teamId"] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// Update replaces an existing user document
func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, userReplaceUpdate(user))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies a partial profile update
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	fields := bson.M{"updatedAt": time.Now()}
	if update.Username != nil {
		fields["username"] = *update.Username
	}
	if update.Avatar != nil {
		fields["avatar"] = *update.Avatar
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTeamID sets or clears (empty string) the user's team reference
func (r *MongoUserRepository) SetTeamID(ctx context.Context, id string, teamID string) error {
	var update bson.M
	if teamID == "" {
		update = bson.M{
			"$unset": bson.M{"teamId": ""},
			"$set":   bson.M{"updatedAt": time.Now()},
		}
	} else {
		update = bson.M{
			"$set": bson.M{"teamId": teamID, "updatedAt": time.Now()},
		}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustPoints atomically adds delta to the user's points, clamped at
// zero, and returns the new total. The clamp runs server-side in a
// single pipeline update so concurrent awards cannot race.
func (r *MongoUserRepository) AdjustPoints(ctx context.Context, id string, delta int) (int, error) {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"points":    bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$points", delta}}}},
			"updatedAt": "$$NOW",
		}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return user.Points, nil
}

// GetPointsByIDs returns the live point totals for the given users
func (r *MongoUserRepository) GetPointsByIDs(ctx context.Context, ids []string) (map[string]int, error) {
	points := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return points, nil
	}

	opts := options.Find().SetProjection(bson.M{"points": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		points[u.ID] = u.Points
	}
	return points, nil
}

// EnsureIndexes creates the unique indexes the signup path relies on
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "resetToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
