// Package overlay owns the user-visible chat state: the conversation list,
// the open/closed flag and the unread counter. It is the only component
// allowed to mutate them. Appends are optimistic: local state updates
// synchronously, delivery happens in the background through the pending
// queue.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/chatapi"
	"github.com/novamart/nova-storefront/internal/creds"
	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/qa"
	"github.com/novamart/nova-storefront/internal/queue"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
)

const (
	conversationKey = "chat_conversation"
	unreadKey       = "chat_unread"

	// maxEntries caps the retained conversation; older entries fall off.
	maxEntries = 50
)

// Config wires an Overlay's collaborators.
type Config struct {
	API      *chatapi.Client
	Pending  *queue.Store
	Creds    *creds.Store
	Resolver *qa.Resolver
	Session  *storage.Store
	Logger   *logger.Logger

	// Notify surfaces user-visible notices (toast analog). Optional.
	Notify queue.Notifier
	// Pulse signals the unread badge animation. Optional.
	Pulse func()

	FlushPeriod time.Duration
	Policy      queue.Policy
}

// Overlay is the conversation view controller.
type Overlay struct {
	cfg    Config
	engine *queue.Engine
	log    *logger.Logger

	// mu is the single critical section for view state. All methods that
	// read or write conversation/open/unread take it.
	mu           sync.Mutex
	conversation []model.ConversationEntry
	open         bool
	unread       int
	input        string
	lastTS       int64

	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

// New builds an overlay, restoring conversation and unread state from the
// session store and, when credentialed, seeding from the server mirror.
func New(cfg Config) *Overlay {
	if cfg.FlushPeriod <= 0 {
		cfg.FlushPeriod = 2 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = queue.DefaultPolicy()
	}

	o := &Overlay{
		cfg:  cfg,
		log:  cfg.Logger,
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	send := func(ctx context.Context, token string, item model.PendingItem) error {
		return cfg.API.Append(ctx, token, item.Entry, item.Incr)
	}
	o.engine = queue.NewEngine(cfg.Pending, cfg.Creds, send, cfg.Notify, cfg.FlushPeriod, cfg.Policy, cfg.Logger)

	cfg.Session.Load(conversationKey, &o.conversation)
	cfg.Session.Load(unreadKey, &o.unread)
	for _, e := range o.conversation {
		if e.Timestamp > o.lastTS {
			o.lastTS = e.Timestamp
		}
	}

	if token := cfg.Creds.Token(); token != "" {
		o.seedFromServer(token)
	}
	return o
}

// Start launches the background machinery: the flush engine, the cache
// persistence loop, credential polling and the credential-appeared flush
// trigger.
func (o *Overlay) Start() {
	o.engine.Start()
	o.cfg.Resolver.StartPersistLoop(5 * time.Second)
	o.cfg.Creds.StartPolling(time.Second)

	watch := o.cfg.Creds.Watch()
	go func() {
		defer close(o.done)
		for {
			select {
			case <-watch:
				// A credential became available (local sign-in or another
				// process); flush everything once, immediately.
				o.flushAllWithSummary(context.Background())
			case <-o.stop:
				return
			}
		}
	}()
}

// Close stops scheduling background work. Requests already in flight are
// not aborted.
func (o *Overlay) Close() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
	<-o.done
	o.engine.Stop()
	o.cfg.Creds.StopPolling()
	o.cfg.Resolver.Stop()
}

// Ask resolves a question, appends the QA entry to the conversation and
// opens the overlay. The local append is synchronous; delivery is not.
func (o *Overlay) Ask(ctx context.Context, question string) []model.Answer {
	key := qa.Normalize(question)
	if key == "" {
		return nil
	}
	answers := o.cfg.Resolver.Resolve(ctx, key)
	o.appendEntry(model.ConversationEntry{Question: key, Answers: answers})
	o.Open(ctx)
	return answers
}

// Send appends a raw user message.
func (o *Overlay) Send(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	o.appendEntry(model.ConversationEntry{Question: trimmed, Role: model.RoleUser})
}

// appendEntry is the append path: insert locally, persist, bump unread when
// closed, then attempt exactly one immediate remote append. On failure (or
// with no credential) the entry lands in the durable pending store.
func (o *Overlay) appendEntry(entry model.ConversationEntry) {
	o.lock()
	ts := o.now().UnixMilli()
	if ts <= o.lastTS {
		ts = o.lastTS + 1
	}
	o.lastTS = ts
	entry.Timestamp = ts

	o.conversation = append(o.conversation, entry)
	if len(o.conversation) > maxEntries {
		o.conversation = o.conversation[len(o.conversation)-maxEntries:]
	}
	o.persistConversationLocked()

	if !o.open {
		o.unread++
		o.persistUnreadLocked()
		if o.cfg.Pulse != nil {
			o.cfg.Pulse()
		}
	}
	o.unlock()

	if entry.Question != "" && len(entry.Answers) > 0 {
		o.cfg.Resolver.Put(entry.Question, entry.Answers)
	}

	token := o.cfg.Creds.Token()
	if token == "" {
		o.cfg.Pending.Append(model.PendingItem{Entry: entry, Incr: 0})
		return
	}

	// One immediate attempt; the caller never waits on it.
	go func() {
		if err := o.cfg.API.Append(context.Background(), token, entry, 1); err != nil {
			o.log.Debug("immediate append failed, queueing",
				zap.Int64("ts", entry.Timestamp), zap.Error(err))
			o.cfg.Pending.Append(model.PendingItem{Entry: entry, Incr: 1})
		}
	}()
}

// Open marks the overlay open, resets the unread counter and, when
// credentialed, clears the server-side counter too.
func (o *Overlay) Open(ctx context.Context) {
	o.lock()
	o.open = true
	o.unread = 0
	o.persistUnreadLocked()
	o.unlock()

	if token := o.cfg.Creds.Token(); token != "" {
		go func() {
			if err := o.cfg.API.MarkRead(ctx, token); err != nil {
				o.log.Debug("mark-read failed", zap.Error(err))
			}
		}()
	}
}

// CloseView marks the overlay closed.
func (o *Overlay) CloseView() {
	o.lock()
	o.open = false
	o.unlock()
}

// Toggle flips the open/closed state.
func (o *Overlay) Toggle(ctx context.Context) {
	o.lock()
	wasOpen := o.open
	o.unlock()
	if wasOpen {
		o.CloseView()
	} else {
		o.Open(ctx)
	}
}

// RetryAll attempts every pending item once and reports the exact counts.
func (o *Overlay) RetryAll(ctx context.Context) (queue.Summary, error) {
	return o.flushAllWithSummary(ctx)
}

// Delete removes the entry with the given timestamp locally and, when
// credentialed, server-side (best effort).
func (o *Overlay) Delete(ctx context.Context, ts int64) {
	o.lock()
	for i := range o.conversation {
		if o.conversation[i].Timestamp == ts {
			o.conversation = append(o.conversation[:i], o.conversation[i+1:]...)
			break
		}
	}
	o.persistConversationLocked()
	o.unlock()

	if token := o.cfg.Creds.Token(); token != "" {
		go func() {
			if err := o.cfg.API.DeleteEntry(ctx, token, ts); err != nil {
				o.log.Debug("server delete failed", zap.Int64("ts", ts), zap.Error(err))
			}
		}()
	}
}

// HandleWidgetMessage pre-fills the input with an embedded widget's payload
// and forces the overlay open.
func (o *Overlay) HandleWidgetMessage(ctx context.Context, summary, code string) {
	if len(code) > 1000 {
		code = code[:1000]
	}
	o.lock()
	o.input = summary + "\n\nOriginal snippet:\n" + code
	o.unlock()
	o.Open(ctx)
}

// Export returns the conversation as pretty-printed JSON.
func (o *Overlay) Export() ([]byte, error) {
	o.lock()
	defer o.unlock()
	return json.MarshalIndent(o.conversation, "", "  ")
}

// Conversation returns a copy of the visible conversation in append order.
func (o *Overlay) Conversation() []model.ConversationEntry {
	o.lock()
	defer o.unlock()
	out := make([]model.ConversationEntry, len(o.conversation))
	copy(out, o.conversation)
	return out
}

// Unread reports the unread counter.
func (o *Overlay) Unread() int {
	o.lock()
	defer o.unlock()
	return o.unread
}

// IsOpen reports whether the overlay is open.
func (o *Overlay) IsOpen() bool {
	o.lock()
	defer o.unlock()
	return o.open
}

// Input returns the pre-filled input text, if any.
func (o *Overlay) Input() string {
	o.lock()
	defer o.unlock()
	return o.input
}

// SetInput stores draft input text.
func (o *Overlay) SetInput(text string) {
	o.lock()
	o.input = text
	o.unlock()
}

// PendingCount reports how many entries await delivery.
func (o *Overlay) PendingCount() int {
	return o.cfg.Pending.Len()
}

// NextRetry reports the earliest scheduled delivery attempt among pending
// entries. ok is false when nothing is pending or everything is due now.
func (o *Overlay) NextRetry() (time.Time, bool) {
	var earliest int64
	for _, item := range o.cfg.Pending.Snapshot() {
		if item.NextAttempt == 0 {
			continue
		}
		if earliest == 0 || item.NextAttempt < earliest {
			earliest = item.NextAttempt
		}
	}
	if earliest == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(earliest), true
}

// Engine exposes the flush engine for callers that drive ticks manually.
func (o *Overlay) Engine() *queue.Engine {
	return o.engine
}

func (o *Overlay) flushAllWithSummary(ctx context.Context) (queue.Summary, error) {
	sum, err := o.engine.FlushAll(ctx)
	if err != nil {
		return sum, err
	}
	if o.cfg.Notify != nil {
		if sum.Failed == 0 {
			o.cfg.Notify(summaryText(sum.Sent))
		} else {
			o.cfg.Notify(summaryTextFailed(sum.Sent, sum.Failed))
		}
	}
	return sum, nil
}

func (o *Overlay) seedFromServer(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chat, err := o.cfg.API.Fetch(ctx, token)
	if err != nil {
		o.log.Debug("failed to seed conversation from server", zap.Error(err))
		return
	}
	o.lock()
	if len(chat.Conversation) > 0 {
		o.conversation = chat.Conversation
		if len(o.conversation) > maxEntries {
			o.conversation = o.conversation[len(o.conversation)-maxEntries:]
		}
		for _, e := range o.conversation {
			if e.Timestamp > o.lastTS {
				o.lastTS = e.Timestamp
			}
		}
		o.persistConversationLocked()
	}
	o.unread = chat.Unread
	o.persistUnreadLocked()
	o.unlock()
}

func (o *Overlay) persistConversationLocked() {
	if err := o.cfg.Session.Save(conversationKey, o.conversation); err != nil {
		o.log.Warn("failed to persist conversation", zap.Error(err))
	}
}

func (o *Overlay) persistUnreadLocked() {
	if err := o.cfg.Session.Save(unreadKey, o.unread); err != nil {
		o.log.Warn("failed to persist unread counter", zap.Error(err))
	}
}

func (o *Overlay) lock()   { o.mu.Lock() }
func (o *Overlay) unlock() { o.mu.Unlock() }

func summaryText(sent int) string {
	return fmt.Sprintf("%d message(s) sent", sent)
}

func summaryTextFailed(sent, failed int) string {
	return fmt.Sprintf("%d sent, %d failed", sent, failed)
}
