package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/metrics"
)

// ErrNoCredential is returned by FlushAll when no bearer token is available.
var ErrNoCredential = errors.New("no credential available")

// CredentialSource reports the current bearer token. An empty string means
// signed out; items simply accumulate until a token appears.
type CredentialSource interface {
	Token() string
}

// AppendFunc delivers one pending item to the server. Any non-nil error is
// a transient delivery failure from the engine's point of view.
type AppendFunc func(ctx context.Context, token string, item model.PendingItem) error

// Notifier surfaces user-visible delivery notices (toast analog).
type Notifier func(msg string)

// Summary is the result of an on-demand flush: exact counts of items sent
// and items still failing, for user-facing reporting.
type Summary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Engine drains the pending store on a fixed period. Each tick sends every
// item whose next eligible time has elapsed, removes delivered items, and
// reschedules failures through the backoff policy until the attempt ceiling
// drops them.
type Engine struct {
	store  *Store
	creds  CredentialSource
	send   AppendFunc
	notify Notifier
	policy Policy
	period time.Duration
	log    *logger.Logger

	now     func() time.Time
	randInt func(n int64) int64

	done    chan struct{}
	stop    chan struct{}
	started bool
}

// NewEngine builds a flush engine over store. notify may be nil.
func NewEngine(store *Store, creds CredentialSource, send AppendFunc, notify Notifier, period time.Duration, policy Policy, log *logger.Logger) *Engine {
	if period <= 0 {
		period = 2 * time.Second
	}
	return &Engine{
		store:   store,
		creds:   creds,
		send:    send,
		notify:  notify,
		policy:  policy,
		period:  period,
		log:     log,
		now:     time.Now,
		randInt: rand.Int63n,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Start launches the periodic flush loop. It runs until Stop is called.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Tick(context.Background())
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop halts scheduling of new ticks and waits for the loop to exit.
// Requests already sent are not aborted.
func (e *Engine) Stop() {
	if !e.started {
		return
	}
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
	<-e.done
}

// Tick performs one flush pass over the due items. It does nothing when the
// queue is empty or no credential is available.
func (e *Engine) Tick(ctx context.Context) {
	if e.store.Len() == 0 {
		return
	}
	token := e.creds.Token()
	if token == "" {
		return
	}

	now := e.now()
	for _, item := range e.store.Due(now.UnixMilli()) {
		e.attempt(ctx, token, item)
	}
}

// FlushAll attempts every pending item once, immediately, ignoring the
// backoff schedule. Failures here do not consume retry attempts; the item
// just stays queued for the periodic engine.
func (e *Engine) FlushAll(ctx context.Context) (Summary, error) {
	token := e.creds.Token()
	if token == "" {
		return Summary{}, ErrNoCredential
	}

	var sum Summary
	for _, item := range e.store.Snapshot() {
		if err := e.send(ctx, token, item); err != nil {
			metrics.ChatFlushAttempts.WithLabelValues("failure").Inc()
			sum.Failed++
			continue
		}
		metrics.ChatFlushAttempts.WithLabelValues("success").Inc()
		e.store.Remove(item.Entry.Timestamp)
		sum.Sent++
		e.toast("Pending message sent")
	}
	return sum, nil
}

func (e *Engine) attempt(ctx context.Context, token string, item model.PendingItem) {
	ts := item.Entry.Timestamp
	if err := e.send(ctx, token, item); err == nil {
		metrics.ChatFlushAttempts.WithLabelValues("success").Inc()
		e.store.Remove(ts)
		e.toast("Pending message sent")
		return
	}

	metrics.ChatFlushAttempts.WithLabelValues("failure").Inc()
	attempts := item.Attempts + 1
	next := e.policy.NextAttempt(e.now(), attempts, e.randInt).UnixMilli()
	if dropped := e.store.Fail(ts, attempts, next, e.policy.MaxAttempts); dropped {
		metrics.ChatDroppedTotal.Inc()
		e.log.Warn("dropping undeliverable chat entry",
			zap.Int64("ts", ts),
			zap.Int("attempts", attempts),
		)
	}
}

func (e *Engine) toast(msg string) {
	if e.notify != nil {
		e.notify(msg)
	}
}
