package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmswank/neural-link/internal/services"
)

// ErrQuotaExceeded is returned when the daily generation cap is reached.
var ErrQuotaExceeded = errors.New("daily generation quota exceeded")

// AdmissionGate enforces a daily cap on generation calls. The counter
// is incremented before the provider is contacted, so a rejected turn
// never costs a generation.
type AdmissionGate struct {
	storage services.Storage
	cap     int64
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdmissionGate creates a gate with the given daily cap. A cap of
// zero or less disables the gate.
func NewAdmissionGate(storage services.Storage, cap int64, logger *slog.Logger) *AdmissionGate {
	return &AdmissionGate{
		storage: storage,
		cap:     cap,
		logger:  logger,
		now:     time.Now,
	}
}

// Admit consumes one unit of today's quota. Returns ErrQuotaExceeded
// once the counter passes the cap.
func (g *AdmissionGate) Admit(ctx context.Context) error {
	if g.cap <= 0 {
		return nil
	}

	dateKey := g.now().UTC().Format("2006-01-02")
	count, err := g.storage.IncrDailyUsage(ctx, dateKey)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if count > g.cap {
		g.logger.Warn("Daily generation cap reached", "date", dateKey, "count", count, "cap", g.cap)
		return ErrQuotaExceeded
	}
	return nil
}
