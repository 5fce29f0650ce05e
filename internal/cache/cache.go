// Package cache provides the bounded per-session memos for generated
// queries and executed results. Keys are normalized so equivalent requests
// hit regardless of casing, whitespace, or ID order.
package cache

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultCapacity bounds each memo to a small constant per session.
const DefaultCapacity = 100

// Cache is a bounded key-value map with oldest-first eviction. Safe for
// concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]V
	order    []string
	capacity int
}

// New creates a cache retaining up to capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		entries:  make(map[string]V, capacity),
		capacity: capacity,
	}
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key, evicting the oldest entry at capacity.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = value
}

// Len returns the current number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GenerationKey identifies a generated query by the question and the
// request scope. Question casing and surrounding whitespace do not affect
// the key; neither does ID order.
func GenerationKey(question string, bankIDs, accountIDs []int64, referenceDate string) string {
	return digest(fmt.Sprintf("sql:%s:%s:%s:%s",
		strings.ToLower(strings.TrimSpace(question)),
		joinSorted(bankIDs),
		joinSorted(accountIDs),
		referenceDate))
}

// ResultKey identifies a result set by the query text with whitespace
// collapsed and case folded, so trivially reformatted statements share an
// entry.
func ResultKey(queryText string) string {
	normalized := strings.ToUpper(strings.Join(strings.Fields(queryText), " "))
	return digest("query:" + normalized)
}

func digest(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

func joinSorted(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
