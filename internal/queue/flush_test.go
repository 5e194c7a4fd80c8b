package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
)

type staticCreds string

func (c staticCreds) Token() string { return string(c) }

func newTestEngine(t *testing.T, creds CredentialSource, send AppendFunc) (*Engine, *Store) {
	t.Helper()
	disk, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	store := NewStore(disk, logger.NewNop())
	e := NewEngine(store, creds, send, nil, time.Second, DefaultPolicy(), logger.NewNop())
	e.randInt = func(int64) int64 { return 0 }
	return e, store
}

func TestEngine_TickNoCredential(t *testing.T) {
	calls := 0
	e, store := newTestEngine(t, staticCreds(""), func(context.Context, string, model.PendingItem) error {
		calls++
		return nil
	})
	store.Append(pending(1000))

	e.Tick(context.Background())
	if calls != 0 {
		t.Fatalf("uncredentialed tick must not send, sent %d", calls)
	}
	if store.Len() != 1 {
		t.Fatal("item must remain queued")
	}
}

func TestEngine_TickDeliversDueItems(t *testing.T) {
	var sent []int64
	e, store := newTestEngine(t, staticCreds("tok"), func(_ context.Context, token string, item model.PendingItem) error {
		if token != "tok" {
			return errors.New("wrong token")
		}
		sent = append(sent, item.Entry.Timestamp)
		return nil
	})
	store.Append(pending(1000))
	store.Append(pending(2000))

	e.Tick(context.Background())
	if len(sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sent))
	}
	if store.Len() != 0 {
		t.Fatalf("delivered items must be removed, %d left", store.Len())
	}
}

func TestEngine_FailureIncrementsAndReschedules(t *testing.T) {
	e, store := newTestEngine(t, staticCreds("tok"), func(context.Context, string, model.PendingItem) error {
		return errors.New("HTTP 500")
	})
	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }

	store.Append(pending(2000))
	e.Tick(context.Background())

	items := store.Snapshot()
	if len(items) != 1 {
		t.Fatalf("item must stay queued, len=%d", len(items))
	}
	got := items[0]
	if got.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", got.Attempts)
	}
	// attempts=1 → 2000ms * 2 = 4s delay, zero jitter.
	want := now.Add(4 * time.Second).UnixMilli()
	if got.NextAttempt != want {
		t.Fatalf("expected nextAttempt=%d, got %d", want, got.NextAttempt)
	}

	// Not due yet: the next tick must skip it.
	e.Tick(context.Background())
	if store.Snapshot()[0].Attempts != 1 {
		t.Fatal("item attempted before its backoff elapsed")
	}
}

func TestEngine_AttemptCeilingDropsItem(t *testing.T) {
	fails := 0
	e, store := newTestEngine(t, staticCreds("tok"), func(context.Context, string, model.PendingItem) error {
		fails++
		return errors.New("unreachable")
	})
	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }

	store.Append(pending(3000))
	for i := 0; i < 7; i++ {
		e.Tick(context.Background())
		// Advance past whatever backoff was just scheduled.
		now = now.Add(2 * time.Minute)
	}

	if fails != 7 {
		t.Fatalf("expected 7 attempts before the drop, got %d", fails)
	}
	if store.Len() != 0 {
		t.Fatalf("item must be dropped after exceeding the ceiling, %d left", store.Len())
	}

	// Further ticks are no-ops.
	e.Tick(context.Background())
	if fails != 7 {
		t.Fatal("dropped item was retried")
	}
}

func TestEngine_FlushAllNoCredential(t *testing.T) {
	e, store := newTestEngine(t, staticCreds(""), func(context.Context, string, model.PendingItem) error {
		return nil
	})
	store.Append(pending(1000))

	if _, err := e.FlushAll(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestEngine_FlushAllReportsExactCounts(t *testing.T) {
	e, store := newTestEngine(t, staticCreds("tok"), func(_ context.Context, _ string, item model.PendingItem) error {
		if item.Entry.Timestamp == 2000 {
			return errors.New("HTTP 503")
		}
		return nil
	})
	store.Append(pending(1000))
	store.Append(pending(2000))
	store.Append(pending(3000))

	sum, err := e.FlushAll(context.Background())
	if err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if sum.Sent != 2 || sum.Failed != 1 {
		t.Fatalf("expected {sent:2 failed:1}, got %+v", sum)
	}
	if store.Len() != 1 {
		t.Fatalf("only the failing item should remain, len=%d", store.Len())
	}
	if store.Snapshot()[0].Attempts != 0 {
		t.Fatal("flush-all failures must not consume retry attempts")
	}
}

func TestEngine_FlushAllIgnoresBackoffSchedule(t *testing.T) {
	e, store := newTestEngine(t, staticCreds("tok"), func(context.Context, string, model.PendingItem) error {
		return nil
	})
	item := pending(1000)
	item.NextAttempt = time.Now().Add(time.Hour).UnixMilli()
	store.Append(item)

	sum, err := e.FlushAll(context.Background())
	if err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if sum.Sent != 1 || store.Len() != 0 {
		t.Fatalf("flush-all must ignore nextAttempt, got %+v len=%d", sum, store.Len())
	}
}

func TestEngine_OfflineThenFlushAll(t *testing.T) {
	// The concrete scenario: append {q:"hello", ts:1000} with no credential,
	// then supply one and flush.
	token := ""
	creds := credsFunc(func() string { return token })
	e, store := newTestEngine(t, creds, func(context.Context, string, model.PendingItem) error {
		return nil
	})

	store.Append(model.PendingItem{
		Entry: model.ConversationEntry{Question: "hello", Timestamp: 1000},
	})
	got := store.Snapshot()[0]
	if got.Attempts != 0 || got.NextAttempt != 0 {
		t.Fatalf("fresh item must have attempts=0 and no schedule: %+v", got)
	}

	token = "tok"
	sum, err := e.FlushAll(context.Background())
	if err != nil {
		t.Fatalf("flush all: %v", err)
	}
	if sum.Sent != 1 || sum.Failed != 0 {
		t.Fatalf("expected {sent:1 failed:0}, got %+v", sum)
	}
	if store.Len() != 0 {
		t.Fatal("pending store must be empty after successful flush")
	}
}

type credsFunc func() string

func (f credsFunc) Token() string { return f() }

func TestEngine_StartStop(t *testing.T) {
	e, store := newTestEngine(t, staticCreds("tok"), func(context.Context, string, model.PendingItem) error {
		return nil
	})
	e.period = 10 * time.Millisecond
	store.Append(pending(1000))

	e.Start()
	deadline := time.After(time.Second)
	for store.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("engine never delivered the queued item")
		case <-time.After(5 * time.Millisecond):
		}
	}
	e.Stop()
	e.Stop() // idempotent
}
