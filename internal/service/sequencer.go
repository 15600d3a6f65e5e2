package service

import (
	"context"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/util"

	"go.uber.org/zap"
)

// CounterStore issues the next order number for a site as one atomic
// read-modify-write. A missing counter reads as zero.
type CounterStore interface {
	NextOrderNumber(ctx context.Context, siteKey string) (int64, error)
}

// Sequencer hands out strictly increasing, collision-free order numbers per
// site. Numbers are never reused; a submission that fails after sequencing
// leaves a gap, which is acceptable.
type Sequencer struct {
	counters CounterStore
	logger   *zap.Logger
}

// NewSequencer creates a new sequencer
func NewSequencer(counters CounterStore) *Sequencer {
	return &Sequencer{
		counters: counters,
		logger:   util.GetLogger(),
	}
}

// NextOrderNumber returns the next order number for a site. A transaction
// that cannot commit surfaces as a SequencingError; the caller treats the
// submission as failed.
func (s *Sequencer) NextOrderNumber(ctx context.Context, siteKey string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Sequencer.NextOrderNumber")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SequencerLatency.Observe(time.Since(start).Seconds())
	}()

	next, err := s.counters.NextOrderNumber(ctx, siteKey)
	if err != nil {
		s.logger.Error("Counter transaction failed",
			zap.String("site_key", siteKey),
			zap.Error(err))
		return 0, &models.SequencingError{SiteKey: siteKey, Err: err}
	}
	return next, nil
}
