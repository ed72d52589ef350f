// Package sync runs aggregation passes on a fixed interval and on demand.
// The loop serializes passes: no two passes run concurrently, and refresh
// requests arriving mid-pass coalesce into the next run.
package sync

import (
	"context"
	"time"

	"marketplace-sync/internal/catalog"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/common/observability"
)

type Syncer struct {
	aggregator *catalog.Aggregator
	publisher  catalog.Publisher
	account    string
	interval   time.Duration
	logger     logger.Logger
	obs        *observability.Observability
	kick       chan struct{}
}

func NewSyncer(agg *catalog.Aggregator, pub catalog.Publisher, account string, interval time.Duration, log logger.Logger, obs *observability.Observability) *Syncer {
	return &Syncer{
		aggregator: agg,
		publisher:  pub,
		account:    account,
		interval:   interval,
		logger:     log.With(map[string]interface{}{"component": "syncer"}),
		obs:        obs,
		kick:       make(chan struct{}, 1),
	}
}

// RequestRefresh asks for an immediate pass without blocking. Requests made
// while a refresh is already pending are merged.
func (s *Syncer) RequestRefresh() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, executing one pass immediately and then
// on every tick or refresh request. A failed pass leaves the previously
// published catalog in place; the next tick retries.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped", nil)
			return
		case <-ticker.C:
			s.runPass(ctx)
		case <-s.kick:
			s.runPass(ctx)
		}
	}
}

func (s *Syncer) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.pass(ctx)
	status := "success"
	if err != nil {
		status = "failure"
		s.logger.WithError(err).Error("aggregation pass failed", nil)
	}
	if s.obs != nil {
		s.obs.RecordPass(ctx, status)
		s.obs.RecordPassDuration(ctx, time.Since(start), status)
	}
}

// pass builds the marketplace view, then the owned view when an account is
// configured, and publishes each as soon as it is complete.
func (s *Syncer) pass(ctx context.Context) error {
	snap, err := s.aggregator.Marketplace(ctx)
	if err != nil {
		return err
	}
	if err := s.publisher.PublishMarketplace(ctx, snap); err != nil {
		return err
	}

	if s.account == "" {
		return nil
	}

	owned, err := s.aggregator.Owned(ctx, s.account)
	if err != nil {
		return err
	}
	return s.publisher.PublishOwned(ctx, owned)
}
