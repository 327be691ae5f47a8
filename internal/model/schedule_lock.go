package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduleLock is a distributed lock document guarding a named maintenance
// job so only one coordinator pod runs it per interval.
type ScheduleLock struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	JobName   string             `json:"job_name" bson:"job_name"`
	LockedBy  string             `json:"locked_by" bson:"locked_by"`
	LockedAt  time.Time          `json:"locked_at" bson:"locked_at"`
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"`
}
