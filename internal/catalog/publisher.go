// internal/catalog/publisher.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher receives completed snapshots. A snapshot is published whole or
// not at all; consumers never observe a partially built catalog.
type Publisher interface {
	PublishMarketplace(ctx context.Context, snap *Snapshot) error
	PublishOwned(ctx context.Context, snap *OwnedSnapshot) error
}

// Store holds the latest published snapshots in memory for the API to serve.
// Swaps are atomic; readers get the snapshot that was current when they
// asked.
type Store struct {
	mu          sync.RWMutex
	marketplace *Snapshot
	owned       *OwnedSnapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) PublishMarketplace(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	s.marketplace = snap
	s.mu.Unlock()
	return nil
}

func (s *Store) PublishOwned(_ context.Context, snap *OwnedSnapshot) error {
	s.mu.Lock()
	s.owned = snap
	s.mu.Unlock()
	return nil
}

// Marketplace returns the latest marketplace snapshot, or false before the
// first successful pass.
func (s *Store) Marketplace() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketplace, s.marketplace != nil
}

// Owned returns the latest ownership-scoped snapshot, or false before the
// first successful pass.
func (s *Store) Owned() (*OwnedSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned, s.owned != nil
}

// RedisPublisher writes each snapshot as a single JSON value per key, so
// downstream consumers always read a complete catalog.
type RedisPublisher struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisPublisher(client *redis.Client, keyPrefix string) *RedisPublisher {
	return &RedisPublisher{client: client, keyPrefix: keyPrefix}
}

func (p *RedisPublisher) PublishMarketplace(ctx context.Context, snap *Snapshot) error {
	return p.set(ctx, fmt.Sprintf("%s:marketplace", p.keyPrefix), snap)
}

func (p *RedisPublisher) PublishOwned(ctx context.Context, snap *OwnedSnapshot) error {
	key := fmt.Sprintf("%s:owned:%s", p.keyPrefix, strings.ToLower(snap.Account))
	return p.set(ctx, key, snap)
}

func (p *RedisPublisher) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("publish snapshot to %s: %w", key, err)
	}
	return nil
}

// FanoutPublisher forwards each snapshot to every sink in order.
type FanoutPublisher struct {
	sinks []Publisher
}

func NewFanoutPublisher(sinks ...Publisher) *FanoutPublisher {
	return &FanoutPublisher{sinks: sinks}
}

func (f *FanoutPublisher) PublishMarketplace(ctx context.Context, snap *Snapshot) error {
	for _, sink := range f.sinks {
		if err := sink.PublishMarketplace(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

func (f *FanoutPublisher) PublishOwned(ctx context.Context, snap *OwnedSnapshot) error {
	for _, sink := range f.sinks {
		if err := sink.PublishOwned(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}
