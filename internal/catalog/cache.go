// Package catalog caches quiz content in front of the platform API so a host
// re-running sessions of the same quiz does not refetch it every time.
package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-host/internal/domain"
)

// Source loads quiz content from a backing store (the platform REST API in
// production).
type Source interface {
	GetQuiz(ctx context.Context, orgID, quizID string) (domain.Quiz, error)
}

// Cache wraps a Source with a TTL cache. Concurrent misses for the same quiz
// collapse into a single load.
type Cache struct {
	source Source
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	entries map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]cachedQuiz),
	}
}

func (c *Cache) GetQuiz(ctx context.Context, orgID, quizID string) (domain.Quiz, error) {
	key := orgID + "/" + quizID
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.entries[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.source.GetQuiz(ctx, orgID, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.entries[key] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *Cache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSource serves quizzes from an in-memory map, useful for tests and
// offline runs.
type StaticSource struct {
	quizzes map[string]domain.Quiz
}

func NewStaticSource(quizzes map[string]domain.Quiz) *StaticSource {
	return &StaticSource{quizzes: quizzes}
}

func (s *StaticSource) GetQuiz(_ context.Context, _, quizID string) (domain.Quiz, error) {
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrNotFound
}
