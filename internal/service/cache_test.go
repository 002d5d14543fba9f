package service

import (
	"testing"
	"time"

	"github.com/bigkaa/blockhood/internal/domain/model"
)

// TestCacheService_GetSet проверяет базовые операции Get/Set.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService[*model.Guide]("guides", 100, 5*time.Minute)

	if _, ok := cache.Get("intro-to-go"); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set("intro-to-go", &model.Guide{Slug: "intro-to-go", Title: "Intro"}, cache.Epoch())
	got, ok := cache.Get("intro-to-go")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.Title != "Intro" {
		t.Errorf("Title = %q, ожидался %q", got.Title, "Intro")
	}
}

// TestCacheService_Delete проверяет инвалидацию.
func TestCacheService_Delete(t *testing.T) {
	cache := NewCacheService[*model.Event]("events", 100, 5*time.Minute)
	cache.Set("meetup", &model.Event{Slug: "meetup"}, cache.Epoch())

	cache.Delete("meetup")

	if _, ok := cache.Get("meetup"); ok {
		t.Fatal("ожидался cache miss после Delete")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, ожидался 0", cache.Len())
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	cache := NewCacheService[*model.Career]("careers", 100, 50*time.Millisecond)
	cache.Set("go-dev", &model.Career{Slug: "go-dev"}, cache.Epoch())

	if _, ok := cache.Get("go-dev"); !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("go-dev"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении maxSize.
func TestCacheService_Eviction(t *testing.T) {
	cache := NewCacheService[*model.Guide]("guides", 2, 5*time.Minute)

	cache.Set("a", &model.Guide{Slug: "a"}, cache.Epoch())
	cache.Set("b", &model.Guide{Slug: "b"}, cache.Epoch())
	cache.Get("b")
	cache.Set("c", &model.Guide{Slug: "c"}, cache.Epoch())

	if _, ok := cache.Get("a"); ok {
		t.Error("ожидалось вытеснение a")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("ожидался cache hit для c")
	}
}

// TestCacheService_StaleSetAfterDelete — чтение, начатое до инвалидации,
// не кладёт устаревшую версию в кэш.
func TestCacheService_StaleSetAfterDelete(t *testing.T) {
	cache := NewCacheService[*model.Event]("events", 100, 5*time.Minute)

	epoch := cache.Epoch()
	stale := &model.Event{Slug: "meetup", AttendeesCount: 1}

	// Запись на событие закоммичена и инвалидировала кэш, пока чтение шло в БД
	cache.Delete("meetup")

	if cache.Set("meetup", stale, epoch) {
		t.Error("Set() принял версию, прочитанную до инвалидации")
	}
	if _, ok := cache.Get("meetup"); ok {
		t.Fatal("устаревшая версия попала в кэш")
	}

	fresh := &model.Event{Slug: "meetup", AttendeesCount: 2}
	if !cache.Set("meetup", fresh, cache.Epoch()) {
		t.Fatal("Set() отклонил свежую версию")
	}
	got, _ := cache.Get("meetup")
	if got.AttendeesCount != 2 {
		t.Errorf("AttendeesCount = %d, ожидался 2", got.AttendeesCount)
	}
}
