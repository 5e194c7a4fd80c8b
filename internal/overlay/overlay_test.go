package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/novamart/nova-storefront/internal/chatapi"
	"github.com/novamart/nova-storefront/internal/creds"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/qa"
	"github.com/novamart/nova-storefront/internal/queue"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
)

type fakeServer struct {
	*httptest.Server
	appends   atomic.Int64
	markReads atomic.Int64
	deletes   atomic.Int64
	failNext  atomic.Bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/append", func(w http.ResponseWriter, r *http.Request) {
		if fs.failNext.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fs.appends.Add(1)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /api/chat/mark-read", func(w http.ResponseWriter, r *http.Request) {
		fs.markReads.Add(1)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("DELETE /api/chat/entry/{ts}", func(w http.ResponseWriter, r *http.Request) {
		fs.deletes.Add(1)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /api/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.UserChat{Conversation: []model.ConversationEntry{}})
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestOverlay(t *testing.T, srv *fakeServer, token string) (*Overlay, *storage.Store) {
	t.Helper()
	disk, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return rebuildOverlay(t, srv, disk, token), disk
}

func rebuildOverlay(t *testing.T, srv *fakeServer, disk *storage.Store, token string) *Overlay {
	t.Helper()
	log := logger.NewNop()
	credStore := creds.NewStore(disk)
	if token != "" {
		if err := credStore.Set(token); err != nil {
			t.Fatalf("creds.Set: %v", err)
		}
	}
	api := chatapi.New(srv.URL, srv.Client())
	resolver := qa.NewResolver(disk, func(ctx context.Context, q string) ([]model.Answer, error) {
		return []model.Answer{{Text: "answer to " + q}}, nil
	}, log)
	return New(Config{
		API:      api,
		Pending:  queue.NewStore(disk, log),
		Creds:    credStore,
		Resolver: resolver,
		Session:  disk,
		Logger:   log,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendAssignsMonotonicTimestamps(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	fixed := time.UnixMilli(5000)
	o.now = func() time.Time { return fixed }

	o.Send("one")
	o.Send("two")
	o.Send("three")

	conv := o.Conversation()
	if len(conv) != 3 {
		t.Fatalf("len = %d, want 3", len(conv))
	}
	for i := 1; i < len(conv); i++ {
		if conv[i].Timestamp <= conv[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing: %d then %d", conv[i-1].Timestamp, conv[i].Timestamp)
		}
	}
}

func TestConversationCapDropsOldest(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	for i := 0; i < maxEntries+5; i++ {
		o.Send(fmt.Sprintf("message %d", i))
	}

	conv := o.Conversation()
	if len(conv) != maxEntries {
		t.Fatalf("len = %d, want %d", len(conv), maxEntries)
	}
	if conv[0].Question != "message 5" {
		t.Fatalf("oldest surviving entry = %q, want %q", conv[0].Question, "message 5")
	}
}

func TestUnreadIncrementsOnlyWhenClosed(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	pulses := 0
	o.cfg.Pulse = func() { pulses++ }

	o.Send("while closed")
	if o.Unread() != 1 {
		t.Fatalf("unread = %d, want 1", o.Unread())
	}
	if pulses != 1 {
		t.Fatalf("pulses = %d, want 1", pulses)
	}

	o.Open(context.Background())
	if o.Unread() != 0 {
		t.Fatalf("unread after open = %d, want 0", o.Unread())
	}

	o.Send("while open")
	if o.Unread() != 0 {
		t.Fatalf("unread while open = %d, want 0", o.Unread())
	}
}

func TestOpenMarksReadServerSide(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "tok")

	o.Open(context.Background())
	waitFor(t, "mark-read call", func() bool { return srv.markReads.Load() >= 1 })
}

func TestSendWithoutTokenQueuesWithoutIncrement(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	o.Send("offline message")

	if o.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", o.PendingCount())
	}
	items := o.cfg.Pending.Snapshot()
	if items[0].Incr != 0 {
		t.Fatalf("incr = %d, want 0", items[0].Incr)
	}
	if srv.appends.Load() != 0 {
		t.Fatalf("server appends = %d, want 0", srv.appends.Load())
	}
}

func TestSendWithTokenDeliversImmediately(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "tok")

	o.Send("online message")
	waitFor(t, "immediate append", func() bool { return srv.appends.Load() == 1 })
	if o.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", o.PendingCount())
	}
}

func TestFailedImmediateAppendLandsInQueue(t *testing.T) {
	srv := newFakeServer(t)
	srv.failNext.Store(true)
	o, _ := newTestOverlay(t, srv, "tok")

	o.Send("will fail")
	waitFor(t, "queued item", func() bool { return o.PendingCount() == 1 })

	items := o.cfg.Pending.Snapshot()
	if items[0].Incr != 1 {
		t.Fatalf("incr = %d, want 1", items[0].Incr)
	}
}

func TestAskAppendsAnswersAndOpens(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	answers := o.Ask(context.Background(), "  Shipping Times?  ")
	if len(answers) != 1 || answers[0].Text != "answer to shipping times?" {
		t.Fatalf("answers = %+v", answers)
	}
	if !o.IsOpen() {
		t.Fatal("overlay should be open after ask")
	}

	conv := o.Conversation()
	if len(conv) != 1 {
		t.Fatalf("len = %d, want 1", len(conv))
	}
	if conv[0].Question != "shipping times?" {
		t.Fatalf("question = %q", conv[0].Question)
	}
	if len(conv[0].Answers) != 1 {
		t.Fatalf("answers on entry = %d, want 1", len(conv[0].Answers))
	}
}

func TestConversationSurvivesRestart(t *testing.T) {
	srv := newFakeServer(t)
	o, disk := newTestOverlay(t, srv, "")

	o.Send("persist me")
	o.Send("and me")

	o2 := rebuildOverlay(t, srv, disk, "")
	conv := o2.Conversation()
	if len(conv) != 2 {
		t.Fatalf("restored len = %d, want 2", len(conv))
	}
	if conv[0].Question != "persist me" {
		t.Fatalf("restored first entry = %q", conv[0].Question)
	}
}

func TestDeleteRemovesLocallyAndRemotely(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "tok")

	o.Send("goner")
	waitFor(t, "immediate append", func() bool { return srv.appends.Load() == 1 })
	ts := o.Conversation()[0].Timestamp

	o.Delete(context.Background(), ts)
	if len(o.Conversation()) != 0 {
		t.Fatal("entry not removed locally")
	}
	waitFor(t, "server delete", func() bool { return srv.deletes.Load() == 1 })
}

func TestWidgetMessagePrefillsInputAndOpens(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	o.HandleWidgetMessage(context.Background(), "explain this", string(long))

	if !o.IsOpen() {
		t.Fatal("overlay should be open")
	}
	input := o.Input()
	if len(input) > len("explain this\n\nOriginal snippet:\n")+1000 {
		t.Fatalf("snippet not truncated: %d bytes", len(input))
	}
}

func TestRetryAllReportsSummary(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	o.Send("queued one")
	o.Send("queued two")

	// Token appears after the messages were queued.
	if err := o.cfg.Creds.Set("tok"); err != nil {
		t.Fatalf("creds.Set: %v", err)
	}

	sum, err := o.RetryAll(context.Background())
	if err != nil {
		t.Fatalf("RetryAll: %v", err)
	}
	if sum.Sent != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 sent", sum)
	}
	if o.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", o.PendingCount())
	}
}

func TestCredentialAppearedTriggersFlush(t *testing.T) {
	srv := newFakeServer(t)
	o, _ := newTestOverlay(t, srv, "")

	o.Send("waiting for login")
	if o.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", o.PendingCount())
	}

	o.Start()
	defer o.Close()

	if err := o.cfg.Creds.Set("tok"); err != nil {
		t.Fatalf("creds.Set: %v", err)
	}
	waitFor(t, "flush after credential", func() bool { return o.PendingCount() == 0 })
}
