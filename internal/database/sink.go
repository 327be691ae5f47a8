package database

import (
	"context"
	"log/slog"

	"github.com/vflopes/proxyhive/internal/model"
)

// ValidationSink persists check results: each result updates the proxy's
// health record and appends one history row. It implements the
// coordinator's result sink contract.
//
// Per-result failures are logged and skipped so one bad row cannot drop a
// whole batch. The sink tolerates duplicates: a retried job's second
// completion simply re-updates the same proxies.
type ValidationSink struct {
	proxies *ProxyRepository
	history *CheckHistoryRepository
}

// NewValidationSink creates a sink writing to both repositories.
func NewValidationSink(proxies *ProxyRepository, history *CheckHistoryRepository) *ValidationSink {
	return &ValidationSink{
		proxies: proxies,
		history: history,
	}
}

// Persist applies every result. It only returns an error when nothing at
// all could be written, which keeps the coordinator's completion path
// available under partial database trouble.
func (s *ValidationSink) Persist(ctx context.Context, results []model.CheckResult) error {
	var updated, failed int

	for _, result := range results {
		if result.ProxyID.IsZero() {
			// Targets submitted without a database identity are probe-only.
			continue
		}

		if err := s.proxies.ApplyResult(ctx, result); err != nil {
			failed++
			slog.Warn("Failed to update proxy record",
				"proxy_id", result.ProxyID.Hex(),
				"addr", result.IP,
				"error", err,
			)
			continue
		}

		if err := s.history.Insert(ctx, result); err != nil {
			slog.Warn("Failed to insert check history",
				"proxy_id", result.ProxyID.Hex(),
				"error", err,
			)
		}
		updated++
	}

	slog.Info("Persisted validation results",
		"results", len(results),
		"updated", updated,
		"failed", failed,
	)
	return nil
}
