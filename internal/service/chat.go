package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/model"
	natsclient "github.com/novamart/nova-storefront/internal/nats"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/metrics"
)

const chatStoreKey = "server_chats"

// ChatService keeps the server-side mirror of each user's conversation.
// State is held in memory and written through to disk after every
// mutation, so a restart preserves conversations.
type ChatService struct {
	events *natsclient.Events
	disk   *storage.Store
	logger *logger.Logger

	mu    sync.RWMutex
	chats map[string]*model.UserChat
}

// NewChatService creates a chat service. events and disk may be nil.
func NewChatService(events *natsclient.Events, disk *storage.Store, log *logger.Logger) *ChatService {
	s := &ChatService{
		events: events,
		disk:   disk,
		logger: log,
		chats:  make(map[string]*model.UserChat),
	}
	if disk != nil {
		var saved map[string]*model.UserChat
		if disk.Load(chatStoreKey, &saved) && saved != nil {
			s.chats = saved
		}
	}
	return s
}

// Get returns the user's chat, creating an empty one on first access.
func (s *ChatService) Get(ctx context.Context, userID string) model.UserChat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if chat, ok := s.chats[userID]; ok {
		return *chat
	}
	return model.UserChat{Conversation: []model.ConversationEntry{}}
}

// Replace overwrites the stored conversation and unread counter.
func (s *ChatService) Replace(ctx context.Context, userID string, req *model.ReplaceChatRequest) model.UserChat {
	conv := req.Conversation
	if conv == nil {
		conv = []model.ConversationEntry{}
	}

	s.mu.Lock()
	chat := &model.UserChat{Conversation: conv, Unread: req.Unread}
	s.chats[userID] = chat
	out := *chat
	s.persistLocked()
	s.mu.Unlock()

	return out
}

// Append adds one or more entries to the user's conversation. When Incr
// is set the unread counter is incremented by it; otherwise when Unread
// is set the counter is replaced; otherwise it is left alone.
func (s *ChatService) Append(ctx context.Context, userID string, req *model.AppendChatRequest) (model.UserChat, error) {
	if len(req.Item) == 0 {
		return model.UserChat{}, fmt.Errorf("missing item to append")
	}

	s.mu.Lock()
	chat := s.chatLocked(userID)
	chat.Conversation = append(chat.Conversation, req.Item...)
	if req.Incr != nil {
		chat.Unread += *req.Incr
	} else if req.Unread != nil {
		chat.Unread = *req.Unread
	}
	out := *chat
	s.persistLocked()
	s.mu.Unlock()

	for _, e := range req.Item {
		metrics.ChatAppendsTotal.WithLabelValues(string(e.Role)).Inc()
	}
	if s.events != nil {
		s.events.PublishAppend(ctx, userID, len(req.Item))
	}

	s.logger.Info("chat entries appended",
		zap.String("user_id", userID),
		zap.Int("count", len(req.Item)),
	)
	return out, nil
}

// MarkRead resets the user's unread counter.
func (s *ChatService) MarkRead(ctx context.Context, userID string) model.UserChat {
	s.mu.Lock()
	chat := s.chatLocked(userID)
	chat.Unread = 0
	out := *chat
	s.persistLocked()
	s.mu.Unlock()

	if s.events != nil {
		s.events.PublishMarkRead(ctx, userID)
	}
	return out
}

// DeleteEntry removes the entry with the given timestamp. Deleting an
// absent timestamp is a no-op.
func (s *ChatService) DeleteEntry(ctx context.Context, userID string, ts int64) {
	s.mu.Lock()
	chat := s.chatLocked(userID)
	kept := chat.Conversation[:0]
	for _, e := range chat.Conversation {
		if e.Timestamp != ts {
			kept = append(kept, e)
		}
	}
	chat.Conversation = kept
	s.persistLocked()
	s.mu.Unlock()

	if s.events != nil {
		s.events.PublishDelete(ctx, userID, ts)
	}
}

// Export renders the user's conversation as indented JSON for download.
func (s *ChatService) Export(ctx context.Context, userID string) ([]byte, error) {
	s.mu.RLock()
	conv := []model.ConversationEntry{}
	if chat, ok := s.chats[userID]; ok {
		conv = chat.Conversation
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("export chat: %w", err)
	}
	return data, nil
}

func (s *ChatService) chatLocked(userID string) *model.UserChat {
	chat, ok := s.chats[userID]
	if !ok {
		chat = &model.UserChat{Conversation: []model.ConversationEntry{}}
		s.chats[userID] = chat
	}
	return chat
}

func (s *ChatService) persistLocked() {
	if s.disk == nil {
		return
	}
	if err := s.disk.Save(chatStoreKey, s.chats); err != nil {
		s.logger.Warn("failed to persist chats", zap.Error(err))
	}
}
