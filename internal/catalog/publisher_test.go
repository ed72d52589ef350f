// internal/catalog/publisher_test.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		PassID:      "pass-1",
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
		Entries: []Entry{
			{ItemID: 1, TokenID: 11, Seller: "0xA", Price: "100", TotalPrice: "105", Name: "One"},
			{ItemID: 3, TokenID: 13, Seller: "0xA", Price: "300", TotalPrice: "315", Name: "Three"},
		},
	}
}

func TestStore_EmptyUntilFirstPublish(t *testing.T) {
	store := NewStore()

	_, ok := store.Marketplace()
	assert.False(t, ok)
	_, ok = store.Owned()
	assert.False(t, ok)
}

func TestStore_PublishReplacesWholesale(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := sampleSnapshot()
	require.NoError(t, store.PublishMarketplace(ctx, first))

	got, ok := store.Marketplace()
	require.True(t, ok)
	assert.Same(t, first, got)

	second := &Snapshot{PassID: "pass-2", Entries: []Entry{}}
	require.NoError(t, store.PublishMarketplace(ctx, second))

	got, ok = store.Marketplace()
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRedisPublisher_WritesCompleteSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisPublisher(client, "catalog")
	require.NoError(t, pub.PublishMarketplace(context.Background(), sampleSnapshot()))

	raw, err := mr.Get("catalog:marketplace")
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "pass-1", got.PassID)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, uint64(1), got.Entries[0].ItemID)
}

func TestRedisPublisher_OwnedKeyIsAccountScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisPublisher(client, "catalog")
	snap := &OwnedSnapshot{
		PassID:  "pass-1",
		Account: "0xSellerA",
		Listed:  []Entry{{ItemID: 2, Sold: true}},
		Sold:    []Entry{{ItemID: 2, Sold: true}},
	}
	require.NoError(t, pub.PublishOwned(context.Background(), snap))

	raw, err := mr.Get("catalog:owned:0xsellera")
	require.NoError(t, err)

	var got OwnedSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "0xSellerA", got.Account)
	assert.Len(t, got.Sold, 1)
}

type failingSink struct{}

func (failingSink) PublishMarketplace(context.Context, *Snapshot) error {
	return errors.New("sink down")
}

func (failingSink) PublishOwned(context.Context, *OwnedSnapshot) error {
	return errors.New("sink down")
}

func TestFanoutPublisher_ForwardsToEverySink(t *testing.T) {
	a := NewStore()
	b := NewStore()
	fanout := NewFanoutPublisher(a, b)

	require.NoError(t, fanout.PublishMarketplace(context.Background(), sampleSnapshot()))

	_, ok := a.Marketplace()
	assert.True(t, ok)
	_, ok = b.Marketplace()
	assert.True(t, ok)
}

func TestFanoutPublisher_SurfacesSinkFailure(t *testing.T) {
	fanout := NewFanoutPublisher(NewStore(), failingSink{})

	err := fanout.PublishMarketplace(context.Background(), sampleSnapshot())

	assert.Error(t, err)
}
