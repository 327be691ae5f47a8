package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vflopes/proxyhive/internal/model"
)

// checkRecord is the audit row written per probe, one document per check.
type checkRecord struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	ProxyID             primitive.ObjectID `bson:"proxy_id"`
	IsWorking           bool               `bson:"is_working"`
	ResponseTimeMs      *int64             `bson:"response_time_ms,omitempty"`
	ErrorKind           model.ErrorKind    `bson:"error_kind,omitempty"`
	ErrorMessage        string             `bson:"error_message,omitempty"`
	HTTPSWorking        bool               `bson:"https_working"`
	HTTPSResponseTimeMs *int64             `bson:"https_response_time_ms,omitempty"`
	HTTPSErrorMessage   string             `bson:"https_error_message,omitempty"`
	ProtocolTested      string             `bson:"protocol_tested"`
	CheckMethod         string             `bson:"check_method"`
	TargetURL           string             `bson:"target_url,omitempty"`
	WorkerID            string             `bson:"worker_id,omitempty"`
	CheckedAt           time.Time          `bson:"checked_at"`
}

// CheckHistoryRepository handles the per-check audit trail
type CheckHistoryRepository struct {
	collection *mongo.Collection
}

// NewCheckHistoryRepository creates a new check history repository
func NewCheckHistoryRepository(db *MongoDB) *CheckHistoryRepository {
	return &CheckHistoryRepository{
		collection: db.GetCollection(CollectionCheckHistory),
	}
}

// Insert records one check result in the history.
func (r *CheckHistoryRepository) Insert(ctx context.Context, result model.CheckResult) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	record := checkRecord{
		ProxyID:             result.ProxyID,
		IsWorking:           result.IsWorking,
		ResponseTimeMs:      result.ResponseTimeMs,
		ErrorKind:           result.ErrorKind,
		ErrorMessage:        result.ErrorMessage,
		HTTPSWorking:        result.SupportsHTTPS,
		HTTPSResponseTimeMs: result.HTTPSResponseTimeMs,
		HTTPSErrorMessage:   result.HTTPSErrorMessage,
		ProtocolTested:      result.ProtocolTested(),
		CheckMethod:         result.CheckMethod,
		TargetURL:           result.TargetURL,
		WorkerID:            result.WorkerID,
		CheckedAt:           checkedAt,
	}

	if _, err := r.collection.InsertOne(ctxTimeout, record); err != nil {
		return fmt.Errorf("failed to insert check record: %w", err)
	}
	return nil
}

// ListByProxy returns the most recent checks for one proxy.
func (r *CheckHistoryRepository) ListByProxy(ctx context.Context, proxyID primitive.ObjectID, limit int) ([]model.CheckResult, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "checked_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctxTimeout, bson.M{"proxy_id": proxyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list check history: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var records []checkRecord
	if err := cursor.All(ctxTimeout, &records); err != nil {
		return nil, fmt.Errorf("failed to decode check history: %w", err)
	}

	results := make([]model.CheckResult, 0, len(records))
	for _, rec := range records {
		results = append(results, model.CheckResult{
			ProxyID:             rec.ProxyID,
			IsWorking:           rec.IsWorking,
			ResponseTimeMs:      rec.ResponseTimeMs,
			ErrorKind:           rec.ErrorKind,
			ErrorMessage:        rec.ErrorMessage,
			SupportsHTTPS:       rec.HTTPSWorking,
			HTTPSResponseTimeMs: rec.HTTPSResponseTimeMs,
			HTTPSErrorMessage:   rec.HTTPSErrorMessage,
			CheckMethod:         rec.CheckMethod,
			TargetURL:           rec.TargetURL,
			WorkerID:            rec.WorkerID,
			CheckedAt:           rec.CheckedAt,
		})
	}
	return results, nil
}

// DeleteOlderThan drops history rows past the retention cutoff, returning
// how many were removed.
func (r *CheckHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{
		"checked_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old check records: %w", err)
	}
	return result.DeletedCount, nil
}
