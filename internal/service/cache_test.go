package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

func feed(ids ...string) []*model.RemoteEntry {
	entries := make([]*model.RemoteEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, &model.RemoteEntry{RemoteID: id, Title: "Title " + id})
	}
	return entries
}

// TestFeedCache_GetSet проверяет базовые операции Get/Set.
func TestFeedCache_GetSet(t *testing.T) {
	cache := NewFeedCache(100, 5*time.Minute)

	// Cache miss
	if _, ok := cache.Get("alice", 10); ok {
		t.Fatal("ожидался cache miss для новой ленты")
	}

	cache.Set("alice", 10, feed("v1", "v2"))
	got, ok := cache.Get("alice", 10)
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if len(got) != 2 || got[0].RemoteID != "v1" {
		t.Errorf("лента = %v, ожидалась [v1 v2]", got)
	}

	// Другой limit — другой ключ
	if _, ok := cache.Get("alice", 5); ok {
		t.Error("ожидался cache miss для другого limit")
	}
}

// TestFeedCache_Isolation — изменения у вызывающего не затрагивают кэш.
func TestFeedCache_Isolation(t *testing.T) {
	cache := NewFeedCache(100, 5*time.Minute)

	entries := feed("v1")
	entries[0].Keywords = []string{"go"}
	cache.Set("alice", 10, entries)
	entries[0].Title = "changed after Set"

	got, _ := cache.Get("alice", 10)
	got[0].Title = "changed after Get"
	got[0].Keywords[0] = "changed"
	got[0] = nil

	again, ok := cache.Get("alice", 10)
	if !ok || again[0] == nil {
		t.Fatal("ожидался cache hit с исходной лентой")
	}
	if again[0].Title != "Title v1" || again[0].Keywords[0] != "go" {
		t.Errorf("кэш изменён вызывающим: %+v", again[0])
	}
}

// TestFeedCache_TTLExpiration проверяет автоматическое истечение TTL.
func TestFeedCache_TTLExpiration(t *testing.T) {
	cache := NewFeedCache(100, 50*time.Millisecond)

	cache.Set("alice", 10, feed("v1"))
	if _, ok := cache.Get("alice", 10); !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("alice", 10); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestFeedCache_Eviction проверяет вытеснение при превышении maxSize.
func TestFeedCache_Eviction(t *testing.T) {
	cache := NewFeedCache(2, 5*time.Minute)

	cache.Set("alice", 10, feed("a"))
	cache.Set("bob", 10, feed("b"))
	cache.Set("carol", 10, feed("c"))

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, ожидалось 2", cache.Len())
	}
	if _, ok := cache.Get("alice", 10); ok {
		t.Error("ожидалось вытеснение самой старой ленты")
	}
	if _, ok := cache.Get("carol", 10); !ok {
		t.Error("ожидался cache hit для последней ленты")
	}
}

// TestFeedCache_Nil проверяет, что nil-кэш безопасен.
func TestFeedCache_Nil(t *testing.T) {
	var cache *FeedCache

	cache.Set("alice", 10, feed("v1"))
	if _, ok := cache.Get("alice", 10); ok {
		t.Error("nil-кэш не должен возвращать данные")
	}
	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, ожидалось 0", cache.Len())
	}
}
