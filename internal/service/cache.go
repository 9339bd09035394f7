// Пакет service — бизнес-логика Secure Vault.
// CacheService — LRU-кэш записей файлов по токену скачивания с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/securevault/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей файлов.",
	})
)

// CacheService — LRU-кэш записей файлов по токену с автоматическим TTL.
// Снижает нагрузку на PostgreSQL при повторных скачиваниях одного файла.
type CacheService struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает FileRecord из кэша по токену скачивания.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(token string) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(token)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(token string, record *model.FileRecord) {
	c.cache.Add(token, record)
}

// Delete удаляет запись из кэша (инвалидация при удалении файла).
func (c *CacheService) Delete(token string) {
	c.cache.Remove(token)
}
