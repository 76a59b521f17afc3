// Package waitlist collects email signups for unreleased products.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidEmail = errors.New("invalid email address")

type Entry struct {
	Email     string    `bson:"email" json:"email"`
	Source    string    `bson:"source" json:"source"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Repository interface {
	Join(ctx context.Context, email, source string) error
	Count(ctx context.Context) (int64, error)
	// CreateIndexes installs the unique email index the duplicate-join
	// no-op depends on. Called once at startup.
	CreateIndexes(ctx context.Context) error
}

type mongoRepository struct {
	entries *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{entries: db.Collection("waitlist")}
}

// Join records a signup. A repeat signup with the same email is a
// silent no-op so the form never errors on double submit.
func (m *mongoRepository) Join(ctx context.Context, email, source string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	entry := Entry{
		Email:     email,
		Source:    source,
		CreatedAt: time.Now(),
	}

	_, err := m.entries.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Printf("waitlist: duplicate signup for %s ignored", email)
			return nil
		}
		return fmt.Errorf("failed to add waitlist entry: %w", err)
	}

	return nil
}

func (m *mongoRepository) Count(ctx context.Context) (int64, error) {
	n, err := m.entries.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}
	return n, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func validEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}
