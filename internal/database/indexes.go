package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createProxyIndexes(ctx, db); err != nil {
		return err
	}
	if err := createCheckHistoryIndexes(ctx, db); err != nil {
		return err
	}
	if err := createScheduleLockIndexes(ctx, db); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createProxyIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionProxies)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "ip", Value: 1},
				{Key: "port", Value: 1},
				{Key: "type", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_endpoint_unique"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
		{
			// Validation runs pick proxies oldest-checked-first.
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "last_checked", Value: 1},
			},
			Options: options.Index().SetName("idx_status_last_checked"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return fmt.Errorf("failed to create proxy indexes: %w", err)
	}

	slog.Info("Created proxies indexes")
	return nil
}

func createCheckHistoryIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionCheckHistory)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "proxy_id", Value: 1},
				{Key: "checked_at", Value: -1},
			},
			Options: options.Index().SetName("idx_proxy_checked_at"),
		},
		{
			Keys:    bson.D{{Key: "checked_at", Value: 1}},
			Options: options.Index().SetName("idx_checked_at"),
		},
		{
			Keys:    bson.D{{Key: "worker_id", Value: 1}},
			Options: options.Index().SetName("idx_worker"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return fmt.Errorf("failed to create check history indexes: %w", err)
	}

	slog.Info("Created proxy_check_history indexes")
	return nil
}

func createScheduleLockIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionScheduleLocks)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "job_name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_job_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_expires_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return fmt.Errorf("failed to create schedule lock indexes: %w", err)
	}

	slog.Info("Created schedule_locks indexes")
	return nil
}
