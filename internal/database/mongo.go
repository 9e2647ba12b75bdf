// Package database manages the MongoDB connection for the application.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"ripple/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// UsersCollection is the name of the users collection.
	UsersCollection = "users"
	// PostsCollection is the name of the posts collection.
	PostsCollection = "posts"

	connectTimeout = 10 * time.Second
)

// Connect establishes the MongoDB connection and verifies it with a ping.
func Connect(cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(50).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)

	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}

	log.Println("MongoDB connected successfully")
	return client, db, nil
}

// EnsureIndexes creates the indexes the application relies on.
// Unique indexes on username and email back the duplicate-signup checks;
// the compound posts index serves feed and per-user listings.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	postIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "posted_by", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := db.Collection(PostsCollection).Indexes().CreateMany(ctx, postIndexes); err != nil {
		return fmt.Errorf("posts indexes: %w", err)
	}

	return nil
}

// Disconnect closes the client, logging rather than failing on error.
func Disconnect(ctx context.Context, client *mongo.Client) {
	if client == nil {
		return
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("error disconnecting mongo client: %v", err)
	}
}
