package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vflopes/proxyhive/internal/model"
)

// LockRepository handles distributed locks for the maintenance scheduler.
// Locks are keyed by job name so only one coordinator pod runs a given
// cron job per interval.
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionScheduleLocks),
	}
}

// AcquireLock attempts to acquire the named lock for podID. Returns true
// when acquired, false when another pod holds an unexpired lock. Uses
// FindOneAndUpdate with upsert for atomic acquisition.
func (r *LockRepository) AcquireLock(ctx context.Context, jobName, podID string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	// Match only when no live lock exists for this job.
	filter := bson.M{
		"job_name": jobName,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"expires_at": bson.M{"$exists": false}},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"job_name":   jobName,
			"locked_by":  podID,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.ScheduleLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
			// Live lock held by another pod.
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if result.LockedBy != podID {
		return false, nil
	}

	slog.Debug("Acquired schedule lock",
		"job_name", jobName,
		"pod_id", podID,
		"expires_at", expiresAt,
	)
	return true, nil
}

// ReleaseLock releases the named lock if podID owns it.
func (r *LockRepository) ReleaseLock(ctx context.Context, jobName, podID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"job_name":  jobName,
		"locked_by": podID,
	}

	result, err := r.collection.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Released schedule lock", "job_name", jobName, "pod_id", podID)
	}
	return nil
}

// ReleaseAllLocks releases every lock owned by podID, typically during
// graceful shutdown.
func (r *LockRepository) ReleaseAllLocks(ctx context.Context, podID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"locked_by": podID})
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released schedule locks during shutdown",
			"pod_id", podID,
			"count", result.DeletedCount,
		)
	}
	return nil
}

// CleanExpiredLocks removes locks whose TTL has passed, covering pods that
// crashed while holding one.
func (r *LockRepository) CleanExpiredLocks(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{
		"expires_at": bson.M{"$lt": time.Now().UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Cleaned expired schedule locks", "count", result.DeletedCount)
	}
	return result.DeletedCount, nil
}
