// Package session keeps the signed-in principal of the admin client.
//
// A session is a bearer token plus the user it resolves to. It survives
// restarts through a Store: a local SQLite file, Redis (shared between
// machines), or memory for tests and one-shot commands.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/mmynk/paladium/internal/models"
)

// ErrNoSession is returned by Store.Load when nothing is stored.
var ErrNoSession = errors.New("no session")

// Credentials is what a Store persists.
type Credentials struct {
	Token string          `json:"token"`
	Type  models.UserType `json:"type"`
	User  models.User     `json:"user"`
}

// Store persists the session between runs.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
	Close() error
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return Credentials{}, ErrNoSession
	}
	return *s.creds, nil
}

func (s *MemoryStore) Save(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = &creds
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
