// Package creds manages the externally-issued bearer token. The token
// lives in the shared state directory so a sign-in from another process is
// visible here; a background poll turns its appearance into a notification,
// the way a storage-change event would in a browser.
package creds

import (
	"sync"
	"time"

	"github.com/novamart/nova-storefront/internal/storage"
)

const tokenKey = "auth_token"

// Store reads and watches the bearer token.
type Store struct {
	disk *storage.Store

	mu       sync.Mutex
	lastSeen string
	watchers []chan string

	stop    chan struct{}
	done    chan struct{}
	polling bool
}

// NewStore builds a credential store over the shared state directory.
func NewStore(disk *storage.Store) *Store {
	s := &Store{
		disk: disk,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.lastSeen = s.Token()
	return s
}

// Token returns the current bearer token, or "" when signed out. It reads
// the persisted value every call; absence is an expected state, not an
// error.
func (s *Store) Token() string {
	var token string
	if !s.disk.Load(tokenKey, &token) {
		return ""
	}
	return token
}

// Set persists a newly issued token and notifies watchers.
func (s *Store) Set(token string) error {
	if err := s.disk.Save(tokenKey, token); err != nil {
		return err
	}
	s.observe(token)
	return nil
}

// Clear removes the persisted token.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.lastSeen = ""
	s.mu.Unlock()
	return s.disk.Delete(tokenKey)
}

// Watch returns a channel that receives the token each time a credential
// becomes available (locally via Set or externally via the poll loop).
func (s *Store) Watch() <-chan string {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

// StartPolling watches the persisted token for out-of-process changes.
func (s *Store) StartPolling(period time.Duration) {
	if period <= 0 {
		period = time.Second
	}
	s.mu.Lock()
	if s.polling {
		s.mu.Unlock()
		return
	}
	s.polling = true
	s.mu.Unlock()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.observe(s.Token())
			case <-s.stop:
				return
			}
		}
	}()
}

// StopPolling halts the poll loop.
func (s *Store) StopPolling() {
	s.mu.Lock()
	started := s.polling
	s.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

// observe records the latest token value and fans out a notification when
// a credential newly appears or changes.
func (s *Store) observe(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || token == s.lastSeen {
		s.lastSeen = token
		return
	}
	s.lastSeen = token
	for _, ch := range s.watchers {
		select {
		case ch <- token:
		default:
		}
	}
}
