package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vflopes/proxyhive/internal/model"
)

// Sentinel errors handlers match on to pick a status code.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// ProxyRepository handles proxy health record operations
type ProxyRepository struct {
	collection *mongo.Collection
}

// NewProxyRepository creates a new proxy repository
func NewProxyRepository(db *MongoDB) *ProxyRepository {
	return &ProxyRepository{
		collection: db.GetCollection(CollectionProxies),
	}
}

// Create inserts a new proxy record
func (r *ProxyRepository) Create(ctx context.Context, proxy *model.Proxy) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if proxy.ID.IsZero() {
		proxy.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, proxy)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("proxy %s (%s): %w", proxy.Addr(), proxy.Type, ErrDuplicate)
		}
		return fmt.Errorf("failed to create proxy: %w", err)
	}
	return nil
}

// GetByID retrieves a proxy record by ID
func (r *ProxyRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Proxy, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var proxy model.Proxy
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&proxy)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("proxy %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}
	return &proxy, nil
}

// FetchForValidation retrieves proxies matching the filter, ordered oldest
// checked first (never-checked proxies lead, since their last_checked is
// missing and Mongo sorts missing fields before any value). This ordering
// is why the most outdated health records are refreshed first.
func (r *ProxyRepository) FetchForValidation(ctx context.Context, filter model.ProxyFilter, limit int) ([]model.Proxy, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Country != "" {
		query["country"] = filter.Country
	}
	if cutoff := filter.Cutoff(time.Now().UTC()); !cutoff.IsZero() {
		query["$or"] = []bson.M{
			{"last_checked": bson.M{"$lt": cutoff}},
			{"last_checked": bson.M{"$exists": false}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "last_checked", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctxTimeout, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proxies for validation: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var proxies []model.Proxy
	if err := cursor.All(ctxTimeout, &proxies); err != nil {
		return nil, fmt.Errorf("failed to decode proxies: %w", err)
	}
	return proxies, nil
}

// ApplyResult folds one check result into the proxy's health record:
// status, latency and timestamps are replaced, success streaks increment
// their counter and reset the opposing one. Duplicate applications from a
// retried job are harmless; they re-assert the same state.
func (r *ProxyRepository) ApplyResult(ctx context.Context, result model.CheckResult) error {
	if result.ProxyID.IsZero() {
		return fmt.Errorf("check result carries no proxy id")
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := result.CheckedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	status := model.StatusInactive
	if result.IsWorking {
		status = model.StatusActive
	}

	set := bson.M{
		"status":       status,
		"is_working":   result.IsWorking,
		"last_checked": now,
	}
	inc := bson.M{}

	if result.ResponseTimeMs != nil {
		set["response_time_ms"] = *result.ResponseTimeMs
	}
	if result.IsWorking {
		set["last_working"] = now
		set["failure_count"] = 0
		inc["success_count"] = 1
	} else {
		inc["failure_count"] = 1
	}

	set["supports_https"] = result.SupportsHTTPS
	set["last_https_check"] = now
	if result.SupportsHTTPS {
		set["last_https_working"] = now
		set["https_failure_count"] = 0
		inc["https_success_count"] = 1
		if result.HTTPSResponseTimeMs != nil {
			set["https_response_time_ms"] = *result.HTTPSResponseTimeMs
		}
	} else {
		inc["https_failure_count"] = 1
	}

	update := bson.M{"$set": set}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	res, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": result.ProxyID}, update)
	if err != nil {
		return fmt.Errorf("failed to apply check result: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("proxy %s not found", result.ProxyID.Hex())
	}
	return nil
}

// DeleteInactiveBefore removes long-dead proxies whose last check is older
// than the cutoff, returning how many were deleted. Used by the cleanup
// maintenance job.
func (r *ProxyRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	filter := bson.M{
		"status":       model.StatusInactive,
		"last_checked": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctxTimeout, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive proxies: %w", err)
	}
	return result.DeletedCount, nil
}

// Count returns the number of proxies matching the filter.
func (r *ProxyRepository) Count(ctx context.Context, filter model.ProxyFilter) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}

	total, err := r.collection.CountDocuments(ctxTimeout, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count proxies: %w", err)
	}
	return total, nil
}
