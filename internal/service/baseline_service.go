package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pet-persona/internal/domain"
	"pet-persona/internal/repository"
	"pet-persona/internal/traits"
)

var ErrBaselineServiceNotConfigured = errors.New("baseline service not configured")

// BaselineStore persiste vectores base ya puntuados.
type BaselineStore interface {
	Baseline(ctx context.Context, kind domain.SubjectKind, breed string) (domain.TraitVector, bool, error)
	SaveBaseline(ctx context.Context, kind domain.SubjectKind, breed string, vector domain.TraitVector) error
}

// BaselineCache guarda vectores base por clave con expiracion.
type BaselineCache interface {
	Get(ctx context.Context, key string) (domain.TraitVector, bool, error)
	Set(ctx context.Context, key string, vector domain.TraitVector) error
}

type cachedBaseline struct {
	vector  domain.TraitVector
	expires time.Time
}

type memoryBaselineCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]cachedBaseline
}

func NewMemoryBaselineCache(ttl time.Duration) BaselineCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &memoryBaselineCache{ttl: ttl, now: time.Now, items: make(map[string]cachedBaseline)}
}

func (c *memoryBaselineCache) Get(_ context.Context, key string) (domain.TraitVector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return domain.TraitVector{}, false, nil
	}
	if c.now().After(item.expires) {
		delete(c.items, key)
		return domain.TraitVector{}, false, nil
	}
	return item.vector.Clone(), true, nil
}

func (c *memoryBaselineCache) Set(_ context.Context, key string, vector domain.TraitVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cachedBaseline{vector: vector.Clone(), expires: c.now().Add(c.ttl)}
	return nil
}

type redisBaselineCache struct {
	client redisKV
	ttl    time.Duration
	prefix string
}

func NewRedisBaselineCache(client *redis.Client, ttl time.Duration) BaselineCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisBaselineCache{client: client, ttl: ttl, prefix: "persona:baseline:"}
}

func (c *redisBaselineCache) Get(ctx context.Context, key string) (domain.TraitVector, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TraitVector{}, false, nil
	}
	if err != nil {
		return domain.TraitVector{}, false, err
	}
	var v domain.TraitVector
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.TraitVector{}, false, fmt.Errorf("decode cached baseline: %w", err)
	}
	return v, true, nil
}

func (c *redisBaselineCache) Set(ctx context.Context, key string, vector domain.TraitVector) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// BaselineService resuelve el vector base de una raza: cache, luego store, luego la
// base de la especie. Errores de cache se registran y no cortan la lectura.
type BaselineService struct {
	store  BaselineStore
	cache  BaselineCache
	scorer *traits.Scorer
	logger *zap.Logger
}

func NewBaselineService(store BaselineStore, cache BaselineCache, scorer *traits.Scorer, logger *zap.Logger) *BaselineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaselineService{store: store, cache: cache, scorer: scorer, logger: logger}
}

func (s *BaselineService) Baseline(ctx context.Context, kind domain.SubjectKind, breed string) (domain.TraitVector, bool, error) {
	if s == nil || s.store == nil {
		return domain.TraitVector{}, false, ErrBaselineServiceNotConfigured
	}
	key := repository.BaselineKey(kind, breed)
	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("baseline cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return v, true, nil
		}
	}

	v, ok, err := s.store.Baseline(ctx, kind, breed)
	if err != nil {
		return domain.TraitVector{}, false, fmt.Errorf("load baseline: %w", err)
	}
	if !ok && strings.TrimSpace(breed) != "" {
		v, ok, err = s.store.Baseline(ctx, kind, "")
		if err != nil {
			return domain.TraitVector{}, false, fmt.Errorf("load species baseline: %w", err)
		}
	}
	if !ok {
		return domain.TraitVector{}, false, nil
	}
	s.remember(ctx, key, v)
	return v, true, nil
}

// SetBaseline puntua los textos de referencia de una raza y los guarda como su base.
func (s *BaselineService) SetBaseline(ctx context.Context, kind domain.SubjectKind, breed string, texts []string) (domain.TraitVector, error) {
	if s == nil || s.store == nil || s.scorer == nil {
		return domain.TraitVector{}, ErrBaselineServiceNotConfigured
	}
	if !kind.Valid() {
		return domain.TraitVector{}, fmt.Errorf("%w: unsupported subject kind %q", domain.ErrInvalidInput, kind)
	}
	var clean []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return domain.TraitVector{}, fmt.Errorf("%w: baseline needs at least one text", domain.ErrInvalidInput)
	}
	v := s.scorer.Vector(clean, time.Now().UTC())
	if err := s.store.SaveBaseline(ctx, kind, breed, v); err != nil {
		return domain.TraitVector{}, fmt.Errorf("save baseline: %w", err)
	}
	s.remember(ctx, repository.BaselineKey(kind, breed), v)
	s.logger.Info("baseline updated",
		zap.String("kind", string(kind)),
		zap.String("breed", breed),
		zap.Int("traits", v.Len()),
	)
	return v, nil
}

func (s *BaselineService) remember(ctx context.Context, key string, v domain.TraitVector) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.Warn("baseline cache set failed", zap.String("key", key), zap.Error(err))
	}
}
