// internal/catalog/aggregator.go
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	cerrors "marketplace-sync/internal/common/errors"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/common/metrics"
	"marketplace-sync/internal/ledger"
	"marketplace-sync/internal/metadata"
)

// Aggregator rebuilds the catalog from on-chain records and resolved
// metadata. Items are processed strictly sequentially; one record's full
// resolution completes before the next begins, which keeps the pipeline
// inside the metadata transport's rate ceiling.
type Aggregator struct {
	ledger   ledger.Client
	resolver *metadata.Resolver
	pacer    *metadata.Pacer
	logger   logger.Logger
	now      func() time.Time
}

func NewAggregator(lc ledger.Client, resolver *metadata.Resolver, pacer *metadata.Pacer, log logger.Logger) *Aggregator {
	return &Aggregator{
		ledger:   lc,
		resolver: resolver,
		pacer:    pacer,
		logger:   log.With(map[string]interface{}{"component": "catalog-aggregator"}),
		now:      time.Now,
	}
}

// Marketplace runs a full-marketplace pass: every unsold item, ascending by
// item id.
func (a *Aggregator) Marketplace(ctx context.Context) (*Snapshot, error) {
	passID := uuid.NewString()
	log := a.logger.With(map[string]interface{}{"view": "marketplace", "passId": passID})
	start := a.now()

	entries, err := a.aggregate(ctx, log, func(rec ledger.ItemRecord) bool {
		return !rec.Sold
	})
	observePass("marketplace", start, a.now(), err)
	if err != nil {
		return nil, err
	}

	log.Info("pass complete", map[string]interface{}{"entries": len(entries)})
	return &Snapshot{
		PassID:      passID,
		GeneratedAt: a.now().UTC(),
		Entries:     entries,
	}, nil
}

// Owned runs an ownership-scoped pass: every item the account listed,
// regardless of sold state, with the sold subset broken out.
func (a *Aggregator) Owned(ctx context.Context, account string) (*OwnedSnapshot, error) {
	if strings.TrimSpace(account) == "" {
		return nil, cerrors.NewAccountMissingError()
	}

	passID := uuid.NewString()
	log := a.logger.With(map[string]interface{}{"view": "owned", "passId": passID, "account": account})
	start := a.now()

	entries, err := a.aggregate(ctx, log, func(rec ledger.ItemRecord) bool {
		return strings.EqualFold(rec.Seller, account)
	})
	observePass("owned", start, a.now(), err)
	if err != nil {
		return nil, err
	}

	sold := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Sold {
			sold = append(sold, e)
		}
	}

	log.Info("pass complete", map[string]interface{}{
		"listed": len(entries),
		"sold":   len(sold),
	})
	return &OwnedSnapshot{
		PassID:      passID,
		Account:     account,
		GeneratedAt: a.now().UTC(),
		Listed:      entries,
		Sold:        sold,
	}, nil
}

// aggregate is one pass over the item-id range. The item count is read once
// up front; items listed mid-pass surface on the next pass. Per-record
// failures drop that record and continue.
func (a *Aggregator) aggregate(ctx context.Context, log logger.Logger, admit func(ledger.ItemRecord) bool) ([]Entry, error) {
	count, err := a.ledger.ItemCount(ctx)
	if err != nil {
		return nil, cerrors.NewItemCountFailedError(err)
	}
	log.Debug("pass started", map[string]interface{}{"itemCount": count})

	entries := make([]Entry, 0, count)
	for id := uint64(1); id <= count; id++ {
		if ctx.Err() != nil {
			return nil, cerrors.NewPassFailedError(ctx.Err())
		}
		if entry, ok := a.processItem(ctx, log, id, admit); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// processItem builds the entry for one item id. Returns ok=false when the
// record is filtered out or dropped. Failures here never abort the pass;
// even a panic in a collaborator only costs this record.
func (a *Aggregator) processItem(ctx context.Context, log logger.Logger, id uint64, admit func(ledger.ItemRecord) bool) (entry Entry, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing item, skipping", map[string]interface{}{
				"itemId": id,
				"panic":  rec,
			})
			metrics.ItemsSkipped.WithLabelValues("panic").Inc()
			ok = false
		}
	}()

	record, err := a.ledger.Item(ctx, id)
	if err != nil {
		log.WithError(cerrors.NewItemReadFailedError(id, err)).Warn("skipping item", map[string]interface{}{"itemId": id})
		metrics.ItemsSkipped.WithLabelValues("item_read").Inc()
		return Entry{}, false
	}

	if !admit(record) {
		return Entry{}, false
	}

	// A failed URI lookup is a contract-call failure, not a metadata fetch
	// failure: the record is dropped outright, it gets no fallback entry.
	uri, err := a.ledger.TokenURI(ctx, record.TokenID)
	if err != nil {
		log.WithError(cerrors.NewTokenURIFailedError(record.TokenID, err)).Warn("skipping item", map[string]interface{}{"itemId": id})
		metrics.ItemsSkipped.WithLabelValues("token_uri").Inc()
		return Entry{}, false
	}

	if err := a.pacer.Pace(ctx); err != nil {
		metrics.ItemsSkipped.WithLabelValues("cancelled").Inc()
		return Entry{}, false
	}

	doc := a.resolver.Resolve(ctx, uri)

	total, err := a.ledger.TotalPrice(ctx, record.ItemID)
	if err != nil {
		log.WithError(cerrors.NewTotalPriceFailedError(id, err)).Warn("skipping item", map[string]interface{}{"itemId": id})
		metrics.ItemsSkipped.WithLabelValues("total_price").Inc()
		return Entry{}, false
	}

	return Entry{
		ItemID:      record.ItemID,
		TokenID:     record.TokenID,
		Seller:      record.Seller,
		Price:       ledger.FormatAmount(record.Price),
		TotalPrice:  ledger.FormatAmount(total),
		Sold:        record.Sold,
		Name:        doc.Name,
		Description: doc.Description,
		Image:       doc.Image,
	}, true
}

func observePass(view string, start, end time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.AggregationPasses.WithLabelValues(view, outcome).Inc()
	metrics.AggregationPassDuration.WithLabelValues(view).Observe(end.Sub(start).Seconds())
}
