// cache.go — LRU-кэш детальных страниц публикаций с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша, лейбл kind — тип публикации.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bh_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш публикаций.",
	}, []string{"kind"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bh_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша публикаций.",
	}, []string{"kind"})
)

// CacheService — LRU-кэш публикаций по slug с автоматическим TTL.
// Каждый экземпляр сервиса держит собственный in-memory кэш.
//
// epoch растёт при каждой инвалидации. Чтение из БД запоминает epoch до
// запроса и кладёт результат только если инвалидаций за это время не было:
// иначе прочитанная версия могла устареть.
type CacheService[V any] struct {
	kind  string
	cache *expirable.LRU[string, V]

	mu    sync.Mutex
	epoch uint64
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService[V any](kind string, maxSize int, ttl time.Duration) *CacheService[V] {
	return &CacheService[V]{
		kind:  kind,
		cache: expirable.NewLRU[string, V](maxSize, nil, ttl),
	}
}

// Get возвращает запись по ключу и обновляет метрики hit/miss.
func (c *CacheService[V]) Get(key string) (V, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.WithLabelValues(c.kind).Inc()
		return val, true
	}
	cacheMissesTotal.WithLabelValues(c.kind).Inc()
	return val, false
}

// Epoch возвращает текущий номер инвалидации; берётся до чтения из БД.
func (c *CacheService[V]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Set добавляет запись, прочитанную при epoch. Если с тех пор была
// инвалидация — запись не сохраняется и возвращается false.
func (c *CacheService[V]) Set(key string, val V, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.cache.Add(key, val)
	return true
}

// Delete удаляет запись (инвалидация после коммита изменения публикации).
func (c *CacheService[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.Remove(key)
}

// Len возвращает количество записей в кэше.
func (c *CacheService[V]) Len() int {
	return c.cache.Len()
}
