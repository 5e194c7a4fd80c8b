// Package service provides business logic for the storefront API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/pkg/logger"
)

// DemoEmail is the account seeded at startup for the hosted demo.
const DemoEmail = "demo@nova.local"

// UserService handles account registration and credential checks.
type UserService struct {
	logger *logger.Logger

	// In-memory storage keyed by lowercase email (would be replaced
	// with a database in production)
	byEmail map[string]*model.User
	byID    map[string]*model.User
	mu      sync.RWMutex
}

// NewUserService creates a user service with the demo account seeded.
func NewUserService(log *logger.Logger) *UserService {
	s := &UserService{
		logger:  log,
		byEmail: make(map[string]*model.User),
		byID:    make(map[string]*model.User),
	}
	_, _ = s.Register(context.Background(), &model.RegisterRequest{
		Name:     "Demo Shopper",
		Email:    DemoEmail,
		Password: "demo-pass",
	})
	return s
}

// Register creates a new account. The email must be unused.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, fmt.Errorf("email already registered")
	}

	user := &model.User{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Name:     req.Name,
		Email:    email,
		Password: req.Password,
	}
	s.byEmail[email] = user
	s.byID[user.ID] = user

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", email),
	)
	return user, nil
}

// Authenticate checks credentials and returns the matching user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	user, exists := s.byEmail[email]
	s.mu.RUnlock()

	if !exists || user.Password != password {
		return nil, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	s.mu.RLock()
	user, exists := s.byID[userID]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}
