// Package vault is the subscription-gated training-video product.
// Subscriptions and video metadata live in MongoDB, queried per feature.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sondregut/pvelite/internal/domain"
)

var ErrNoSubscription = errors.New("no subscription found")

type Repository interface {
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	ListVideos(ctx context.Context, category string) ([]*domain.VaultVideo, error)
	CreateIndexes(ctx context.Context) error
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type mongoRepository struct {
	subscriptions *mongo.Collection
	videos        *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		subscriptions: db.Collection("subscriptions"),
		videos:        db.Collection("vault_videos"),
	}
}

func (m *mongoRepository) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription

	filter := bson.M{"user_id": userID}
	err := m.subscriptions.FindOne(ctx, filter).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

func (m *mongoRepository) ListVideos(ctx context.Context, category string) ([]*domain.VaultVideo, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	opts := options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}})
	cursor, err := m.videos.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer cursor.Close(ctx)

	var videos []*domain.VaultVideo
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, fmt.Errorf("failed to decode videos: %w", err)
	}

	return videos, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
