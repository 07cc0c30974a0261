package repository

import (
	"context"
	"sort"
	"sync"

	"stakesim/internal/model"
)

// MemoryStore keeps accounts and history in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	history  map[string][]model.BetRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		history:  make(map[string][]model.BetRecord),
	}
}

func (s *MemoryStore) Load(_ context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, account *model.Account) error {
	if account.Username == "" {
		return ErrEmptyUsername
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Username] = account.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, username string, rec model.BetRecord, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[username] = prepend(s.history[username], rec, limit)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, username string, limit int) ([]model.BetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[username]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	out := make([]model.BetRecord, len(h))
	copy(out, h)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
