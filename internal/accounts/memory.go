package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/bizgate/internal/domain/repository"
)

// MemoryStore es una AccountRepository en memoria, para desarrollo y tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byName  map[string]*repository.Account
	byToken map[string]string // token -> username
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:  make(map[string]*repository.Account),
		byToken: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (*repository.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(acc), nil
}

func (s *MemoryStore) GetByToken(_ context.Context, token string) (*repository.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s.byName[username]), nil
}

func (s *MemoryStore) SaveToken(_ context.Context, username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byName[username]
	if !ok {
		return repository.ErrNotFound
	}
	if acc.Token != nil {
		delete(s.byToken, *acc.Token)
	}
	t := token
	acc.Token = &t
	acc.UpdatedAt = s.now().UTC()
	s.byToken[token] = username
	return nil
}

func (s *MemoryStore) Create(_ context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[in.Username]; exists {
		return nil, repository.ErrConflict
	}
	now := s.now().UTC()
	acc := &repository.Account{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byName[in.Username] = acc
	return clone(acc), nil
}

func clone(a *repository.Account) *repository.Account {
	cp := *a
	if a.Token != nil {
		t := *a.Token
		cp.Token = &t
	}
	return &cp
}
