package cache

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"we_listings/models"
)

const keyPrefix = "listings:"

// Key returns the cache key for a region's snapshot.
func Key(regionID string) string {
	return keyPrefix + regionID
}

// Store is the persistence behind the listings cache. The SQLite store
// implements it for durability across restarts; MemoryStore backs tests and
// storage-less setups.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Cache holds the latest listings snapshot per region on top of a Store.
type Cache struct {
	store Store
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// Get loads a region's snapshot. Read failures and corrupt entries behave
// like a miss so a bad cache never takes the API down.
func (c *Cache) Get(regionID string) (*models.Snapshot, bool) {
	data, ok, err := c.store.Get(Key(regionID))
	if err != nil {
		log.Printf("[cache] read for %s failed: %v", regionID, err)
		return nil, false
	}
	if !ok || len(data) == 0 {
		return nil, false
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[cache] corrupt snapshot for %s: %v", regionID, err)
		return nil, false
	}
	return &snap, true
}

// Set replaces the region's snapshot wholesale and stamps it with the
// current time. Readers see the old snapshot or the new one, never a mix.
func (c *Cache) Set(regionID string, listings []models.Listing) (*models.Snapshot, error) {
	if listings == nil {
		listings = []models.Listing{}
	}
	snap := &models.Snapshot{
		Listings:    listings,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(Key(regionID), data); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Cache) Clear(regionID string) error {
	return c.store.Delete(Key(regionID))
}
