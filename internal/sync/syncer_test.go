// internal/sync/syncer_test.go
package sync

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-sync/internal/catalog"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/ledger"
	"marketplace-sync/internal/metadata"
)

// fakeLedger serves one listed item. Token URIs are left empty so passes
// complete without network fetches.
type fakeLedger struct {
	countErr error
}

func (f *fakeLedger) ItemCount(context.Context) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return 1, nil
}

func (f *fakeLedger) Item(_ context.Context, itemID uint64) (ledger.ItemRecord, error) {
	return ledger.ItemRecord{
		ItemID:  itemID,
		TokenID: itemID,
		Seller:  "0xSellerA",
		Price:   big.NewInt(100),
	}, nil
}

func (f *fakeLedger) TotalPrice(_ context.Context, _ uint64) (*big.Int, error) {
	return big.NewInt(105), nil
}

func (f *fakeLedger) TokenURI(context.Context, uint64) (string, error) {
	return "", nil
}

func (f *fakeLedger) PurchaseItem(context.Context, uint64, *big.Int) (ledger.Transaction, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) Mint(context.Context, string) (ledger.Transaction, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) SetApprovalForAll(context.Context, string, bool) (ledger.Transaction, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) MakeItem(context.Context, string, uint64, *big.Int) (ledger.Transaction, error) {
	return nil, errors.New("not supported")
}

// recordingPublisher counts publishes and signals each completed marketplace
// publish.
type recordingPublisher struct {
	marketplace atomic.Int64
	owned       atomic.Int64
	published   chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan struct{}, 16)}
}

func (p *recordingPublisher) PublishMarketplace(_ context.Context, _ *catalog.Snapshot) error {
	p.marketplace.Add(1)
	p.published <- struct{}{}
	return nil
}

func (p *recordingPublisher) PublishOwned(_ context.Context, _ *catalog.OwnedSnapshot) error {
	p.owned.Add(1)
	return nil
}

func (p *recordingPublisher) counts() (int64, int64) {
	return p.marketplace.Load(), p.owned.Load()
}

func newTestAggregator(t *testing.T, fl *fakeLedger) *catalog.Aggregator {
	t.Helper()
	log := logger.NewTestLogger(t)
	resolver := metadata.NewResolver(log, time.Second)
	pacer := metadata.NewPacer(0)
	return catalog.NewAggregator(fl, resolver, pacer, log)
}

func waitForPublish(t *testing.T, p *recordingPublisher) {
	t.Helper()
	select {
	case <-p.published:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published pass")
	}
}

func TestPass_PublishesBothViews(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewSyncer(newTestAggregator(t, &fakeLedger{}), pub, "0xSellerA", time.Hour, logger.NewTestLogger(t), nil)

	err := s.pass(context.Background())

	require.NoError(t, err)
	marketplace, owned := pub.counts()
	assert.Equal(t, int64(1), marketplace)
	assert.Equal(t, int64(1), owned)
}

func TestPass_SkipsOwnedWithoutAccount(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewSyncer(newTestAggregator(t, &fakeLedger{}), pub, "", time.Hour, logger.NewTestLogger(t), nil)

	err := s.pass(context.Background())

	require.NoError(t, err)
	marketplace, owned := pub.counts()
	assert.Equal(t, int64(1), marketplace)
	assert.Equal(t, int64(0), owned)
}

func TestPass_FailurePublishesNothing(t *testing.T) {
	pub := newRecordingPublisher()
	fl := &fakeLedger{countErr: errors.New("gateway unreachable")}
	s := NewSyncer(newTestAggregator(t, fl), pub, "0xSellerA", time.Hour, logger.NewTestLogger(t), nil)

	err := s.pass(context.Background())

	require.Error(t, err)
	marketplace, owned := pub.counts()
	assert.Equal(t, int64(0), marketplace)
	assert.Equal(t, int64(0), owned)
}

func TestRun_ExecutesImmediatePass(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewSyncer(newTestAggregator(t, &fakeLedger{}), pub, "", time.Hour, logger.NewTestLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	waitForPublish(t, pub)
	cancel()
	<-done

	marketplace, _ := pub.counts()
	assert.Equal(t, int64(1), marketplace)
}

func TestRun_RefreshRequestTriggersPass(t *testing.T) {
	pub := newRecordingPublisher()
	s := NewSyncer(newTestAggregator(t, &fakeLedger{}), pub, "", time.Hour, logger.NewTestLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	waitForPublish(t, pub)
	s.RequestRefresh()
	waitForPublish(t, pub)
	cancel()
	<-done

	marketplace, _ := pub.counts()
	assert.Equal(t, int64(2), marketplace)
}

func TestRequestRefresh_CoalescesPendingRequests(t *testing.T) {
	s := NewSyncer(newTestAggregator(t, &fakeLedger{}), newRecordingPublisher(), "", time.Hour, logger.NewTestLogger(t), nil)

	// None of these block even though no loop is draining the channel.
	s.RequestRefresh()
	s.RequestRefresh()
	s.RequestRefresh()

	assert.Len(t, s.kick, 1)
}
