package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
)

func newDisk(t *testing.T) *storage.Store {
	t.Helper()
	disk, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return disk
}

func TestResolver_CacheHitSkipsRemote(t *testing.T) {
	var calls int32
	query := func(ctx context.Context, q string) ([]model.Answer, error) {
		atomic.AddInt32(&calls, 1)
		return []model.Answer{{Text: "answer for " + q}}, nil
	}
	r := NewResolver(newDisk(t), query, logger.NewNop())

	first := r.Resolve(context.Background(), "Shipping Times?")
	second := r.Resolve(context.Background(), "  shipping times?  ")

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 remote call, got %d", calls)
	}
	if len(first) != 1 || len(second) != 1 || first[0].Text != second[0].Text {
		t.Fatalf("expected identical cached answers, got %v vs %v", first, second)
	}
}

func TestResolver_ConcurrentDedup(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	query := func(ctx context.Context, q string) ([]model.Answer, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []model.Answer{{Text: "slow answer"}}, nil
	}
	r := NewResolver(newDisk(t), query, logger.NewNop())

	const callers = 5
	results := make([][]model.Answer, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "same question")
		}(i)
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 remote call for concurrent identical questions, got %d", got)
	}
	for i, res := range results {
		if len(res) != 1 || res[0].Text != "slow answer" {
			t.Fatalf("caller %d got unexpected answers: %v", i, res)
		}
	}
}

func TestResolver_FailureIsSyntheticAnswerAndNotCached(t *testing.T) {
	var calls int32
	query := func(ctx context.Context, q string) ([]model.Answer, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	}
	r := NewResolver(newDisk(t), query, logger.NewNop())

	answers := r.Resolve(context.Background(), "broken")
	if len(answers) != 1 || !strings.HasPrefix(answers[0].Text, "QA failed:") {
		t.Fatalf("expected synthetic failure answer, got %v", answers)
	}

	// Failures must not poison the cache: the next resolve retries remotely.
	r.Resolve(context.Background(), "broken")
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected failure to bypass the cache, calls=%d", calls)
	}
}

func TestResolver_EmptyQuestion(t *testing.T) {
	r := NewResolver(newDisk(t), func(context.Context, string) ([]model.Answer, error) {
		t.Fatal("remote query must not run for an empty question")
		return nil, nil
	}, logger.NewNop())

	if answers := r.Resolve(context.Background(), "   "); answers != nil {
		t.Fatalf("expected nil answers, got %v", answers)
	}
}

func TestResolver_PersistAndRestore(t *testing.T) {
	disk := newDisk(t)
	query := func(ctx context.Context, q string) ([]model.Answer, error) {
		return []model.Answer{{Text: "remote"}}, nil
	}
	r := NewResolver(disk, query, logger.NewNop())
	r.Resolve(context.Background(), "keep me")
	r.Persist()

	var calls int32
	restored := NewResolver(disk, func(context.Context, string) ([]model.Answer, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("should not be called")
	}, logger.NewNop())

	answers := restored.Resolve(context.Background(), "keep me")
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("restored cache entry must answer without a remote call")
	}
	if len(answers) != 1 || answers[0].Text != "remote" {
		t.Fatalf("unexpected restored answers: %v", answers)
	}
}
