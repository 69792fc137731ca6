package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Fixed storage keys.
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// Session holds the bearer token and cached user for one client.
//
// The token is read from the store once in Load. After that the in-memory copy changes only
// through SetAuth and Clear, which write through to the store; other writers of the same store
// are not observed.
type Session struct {
	store Store

	mu    sync.RWMutex
	token string
	user  json.RawMessage
}

// Load creates a Session and reads any persisted token and user from store.
func Load(ctx context.Context, store Store) (*Session, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store}

	token, ok, err := store.Get(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	if ok {
		s.token = token
	}

	user, ok, err := store.Get(ctx, UserKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session user: %w", err)
	}
	if ok && json.Valid([]byte(user)) {
		s.user = json.RawMessage(user)
	}

	return s, nil
}

// Token returns the bearer token, or an empty string.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated returns whether a token is currently held.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// User returns the cached user JSON, or nil.
func (s *Session) User() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	out := make(json.RawMessage, len(s.user))
	copy(out, s.user)
	return out
}

// SetAuth stores the token and user in memory and in the store.
func (s *Session) SetAuth(ctx context.Context, token string, user any) error {
	var rawUser json.RawMessage
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to encode session user: %w", err)
		}
		rawUser = b
	}

	s.mu.Lock()
	s.token = token
	s.user = rawUser
	s.mu.Unlock()

	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	if rawUser != nil {
		if err := s.store.Set(ctx, UserKey, string(rawUser)); err != nil {
			return fmt.Errorf("failed to persist session user: %w", err)
		}
	}
	return nil
}

// Clear forgets the token and user in memory and removes the persisted entries. The in-memory
// state is cleared even if the store fails.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Delete(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}
