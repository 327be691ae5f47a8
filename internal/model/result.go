package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorKind classifies why a probe failed.
type ErrorKind string

const (
	ErrorTimeout           ErrorKind = "timeout"
	ErrorConnectionRefused ErrorKind = "connection-refused"
	ErrorProtocolMismatch  ErrorKind = "protocol-mismatch"
	ErrorUnsupportedScheme ErrorKind = "unsupported-scheme"
	ErrorOther             ErrorKind = "error"
)

// CheckResult is the outcome of probing one proxy. A failed probe is still
// a result; IsWorking is false and ErrorKind/ErrorMessage say why.
type CheckResult struct {
	ProxyID             primitive.ObjectID `json:"proxy_id" bson:"proxy_id"`
	IP                  string             `json:"ip" bson:"ip"`
	Port                int                `json:"port" bson:"port"`
	Type                ProxyType          `json:"type" bson:"type"`
	IsWorking           bool               `json:"is_working" bson:"is_working"`
	ResponseTimeMs      *int64             `json:"response_time_ms,omitempty" bson:"response_time_ms,omitempty"`
	ErrorKind           ErrorKind          `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	ErrorMessage        string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
	SupportsHTTPS       bool               `json:"supports_https" bson:"supports_https"`
	HTTPSResponseTimeMs *int64             `json:"https_response_time_ms,omitempty" bson:"https_response_time_ms,omitempty"`
	HTTPSErrorMessage   string             `json:"https_error_message,omitempty" bson:"https_error_message,omitempty"`
	CheckMethod         string             `json:"check_method" bson:"check_method"`
	TargetURL           string             `json:"target_url,omitempty" bson:"target_url,omitempty"`
	WorkerID            string             `json:"worker_id,omitempty" bson:"worker_id,omitempty"`
	CheckedAt           time.Time          `json:"checked_at" bson:"checked_at"`
}

// ProtocolTested reports which protocols the check exercised, recorded in
// the check history for later analysis.
func (r *CheckResult) ProtocolTested() string {
	if r.HTTPSResponseTimeMs != nil || r.SupportsHTTPS || r.HTTPSErrorMessage != "" {
		return "both"
	}
	return string(r.Type)
}
