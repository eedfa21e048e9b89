package graphql

import (
	"context"
	"sync"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"go.uber.org/zap"
)

// User is the authenticated account
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

const meQuery = `query Me { me { id username email } }`

// Me fetches the authenticated user
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		Me *User `json:"me"`
	}
	if err := c.Do(ctx, meQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}

// Session caches the authenticated user. Until Refresh succeeds there is no
// user.
type Session struct {
	client *Client
	mu     sync.RWMutex
	user   *User
}

// NewSession creates an unauthenticated session
func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// Refresh resolves the user through Me. On failure the previous user is kept.
func (s *Session) Refresh(ctx context.Context) (*User, error) {
	user, err := s.client.Me(ctx)
	if err != nil {
		logger.Warn("resolve current user failed", zap.Error(err))
		return s.User(), err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	if user != nil {
		logger.Info("authenticated", zap.String("userId", user.ID), zap.String("username", user.Username))
	}
	return user, nil
}

// User returns the cached user, nil when unauthenticated
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the authenticated user's id
func (s *Session) UserID() (string, bool) {
	u := s.User()
	if u == nil || u.ID == "" {
		return "", false
	}
	return u.ID, true
}
