package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
)

// Session holds the signed-in user and their access token. Components that
// care about sign-in or sign-out register with OnChange.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      *domain.User
	listeners []func(user *domain.User)
}

func NewSession() *Session {
	return &Session{}
}

// Set signs the user in and notifies listeners.
func (s *Session) Set(token string, user *domain.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	listeners := append([]func(*domain.User){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

// Clear signs out. Listeners receive nil.
func (s *Session) Clear() {
	s.Set("", nil)
}

func (s *Session) OnChange(fn func(user *domain.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// UserID is uuid.Nil when signed out.
func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return uuid.Nil
	}
	return s.user.ID
}

func (s *Session) SignedIn() bool {
	return s.Token() != ""
}

type storedSession struct {
	Token string       `json:"access_token"`
	User  *domain.User `json:"user"`
}

// Save writes the session to path with owner-only permissions.
func (s *Session) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(storedSession{Token: s.token, User: s.user}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load restores a session saved with Save. A missing file is not an error.
func (s *Session) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	s.Set(stored.Token, stored.User)
	return nil
}
