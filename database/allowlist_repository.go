package database

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AllowedEmailsCollection holds a single document listing the email
// addresses permitted to sign up for a restricted event.
const AllowedEmailsCollection = "allowed_emails"

// AllowlistDocID is the well-known ID of the allowlist document
const AllowlistDocID = "signup"

type allowlistDoc struct {
	ID     string   `bson:"_id"`
	Emails []string `bson:"emails"`
}

// MongoAllowlistRepository reads the signup email allowlist
type MongoAllowlistRepository struct {
	collection *mongo.Collection
}

// NewMongoAllowlistRepository creates a new MongoDB allowlist repository
func NewMongoAllowlistRepository(db *MongoDB) *MongoAllowlistRepository {
	return &MongoAllowlistRepository{
		collection: db.GetCollection(AllowedEmailsCollection),
	}
}

// IsAllowed reports whether the email appears on the allowlist.
// A missing allowlist document denies everyone, matching the original
// behavior of a restricted event with no configured participants.
func (r *MongoAllowlistRepository) IsAllowed(ctx context.Context, email string) (bool, error) {
	var doc allowlistDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": AllowlistDocID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range doc.Emails {
		if strings.ToLower(allowed) == needle {
			return true, nil
		}
	}
	return false, nil
}
