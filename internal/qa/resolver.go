// Package qa memoizes question answering on the client side: a
// session-scoped answer cache plus single-flight collapsing of identical
// concurrent questions, so at most one remote QA query per normalized
// question is ever outstanding.
package qa

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/metrics"
)

const cacheKey = "qa_cache"

// QueryFunc issues the remote QA query for a normalized question.
type QueryFunc func(ctx context.Context, question string) ([]model.Answer, error)

// Resolver answers questions from cache when it can, collapsing concurrent
// misses for the same question into one remote call. It is purely a
// performance layer: never the source of truth for conversation content.
type Resolver struct {
	query QueryFunc
	disk  *storage.Store
	log   *logger.Logger

	mu    sync.Mutex
	cache map[string][]model.Answer

	group singleflight.Group

	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewResolver builds a resolver, restoring the persisted cache from the
// state directory. A missing or corrupt cache document starts empty.
func NewResolver(disk *storage.Store, query QueryFunc, log *logger.Logger) *Resolver {
	r := &Resolver{
		query: query,
		disk:  disk,
		log:   log,
		cache: make(map[string][]model.Answer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	var restored map[string][]model.Answer
	if disk.Load(cacheKey, &restored) {
		for k, v := range restored {
			r.cache[k] = v
		}
	}
	return r
}

// Normalize folds a question to its cache key: lower-cased and trimmed.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Resolve returns the answers for question. A remote failure resolves to a
// single synthetic answer rather than an error; retrying is not this
// component's job.
func (r *Resolver) Resolve(ctx context.Context, question string) []model.Answer {
	key := Normalize(question)
	if key == "" {
		return nil
	}

	r.mu.Lock()
	if answers, ok := r.cache[key]; ok {
		r.mu.Unlock()
		metrics.QAQueriesTotal.WithLabelValues("cache_hit").Inc()
		return answers
	}
	r.mu.Unlock()

	v, _, shared := r.group.Do(key, func() (any, error) {
		start := time.Now()
		answers, err := r.query(ctx, key)
		metrics.QADuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.QAQueriesTotal.WithLabelValues("error").Inc()
			r.log.Debug("remote qa query failed", zap.String("question", key), zap.Error(err))
			return []model.Answer{{Text: "QA failed: " + err.Error()}}, nil
		}
		metrics.QAQueriesTotal.WithLabelValues("remote").Inc()
		r.mu.Lock()
		r.cache[key] = answers
		r.mu.Unlock()
		return answers, nil
	})
	if shared {
		metrics.QAQueriesTotal.WithLabelValues("inflight").Inc()
	}
	return v.([]model.Answer)
}

// Put seeds the cache directly; the append path records answers it already
// holds so a repeat question stays local.
func (r *Resolver) Put(question string, answers []model.Answer) {
	key := Normalize(question)
	if key == "" {
		return
	}
	r.mu.Lock()
	r.cache[key] = answers
	r.mu.Unlock()
}

// StartPersistLoop flushes the cache to the state directory every period.
func (r *Resolver) StartPersistLoop(period time.Duration) {
	if period <= 0 {
		period = 5 * time.Second
	}
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Persist()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the persist loop, writing the cache one last time.
func (r *Resolver) Stop() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		select {
		case <-r.stop:
		default:
			close(r.stop)
		}
		<-r.done
	}
	r.Persist()
}

// Persist writes the current cache snapshot to the state directory.
func (r *Resolver) Persist() {
	r.mu.Lock()
	snapshot := make(map[string][]model.Answer, len(r.cache))
	for k, v := range r.cache {
		snapshot[k] = v
	}
	r.mu.Unlock()

	if err := r.disk.Save(cacheKey, snapshot); err != nil {
		r.log.Warn("failed to persist qa cache", zap.Error(err))
	}
}
