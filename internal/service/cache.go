// cache.go — FeedCache: LRU-кэш лент пользователей хостинга с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	feedCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_feed_cache_hits_total",
		Help: "Общее количество попаданий в кэш лент пользователей.",
	})
	feedCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_feed_cache_misses_total",
		Help: "Общее количество промахов кэша лент пользователей.",
	})
)

// FeedCache — кэш лент по ключу (username, limit).
// Каждый экземпляр модуля держит собственный in-memory кэш.
// nil-кэш допустим: Get всегда промахивается, Set ничего не делает.
type FeedCache struct {
	cache *expirable.LRU[string, []*model.RemoteEntry]
}

// NewFeedCache создаёт кэш с максимальным количеством лент maxSize и временем жизни ttl.
func NewFeedCache(maxSize int, ttl time.Duration) *FeedCache {
	return &FeedCache{
		cache: expirable.NewLRU[string, []*model.RemoteEntry](maxSize, nil, ttl),
	}
}

func feedKey(username string, limit int) string {
	return fmt.Sprintf("%s|%d", username, limit)
}

// Get возвращает копию ленты из кэша и обновляет метрики hit/miss.
func (c *FeedCache) Get(username string, limit int) ([]*model.RemoteEntry, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(feedKey(username, limit))
	if ok {
		feedCacheHitsTotal.Inc()
		return cloneEntries(val), true
	}
	feedCacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет копию ленты.
func (c *FeedCache) Set(username string, limit int, entries []*model.RemoteEntry) {
	if c == nil {
		return
	}
	c.cache.Add(feedKey(username, limit), cloneEntries(entries))
}

func cloneEntries(entries []*model.RemoteEntry) []*model.RemoteEntry {
	out := make([]*model.RemoteEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// Purge очищает кэш.
func (c *FeedCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// Len возвращает количество лент в кэше.
func (c *FeedCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
