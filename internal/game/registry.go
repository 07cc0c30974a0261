package game

import (
	"fmt"
	"sort"
	"sync"

	"stakesim/internal/model"
)

// Registry manages game registration and lookup by game type.
type Registry struct {
	games map[model.GameType]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[model.GameType]Game),
	}
}

// Register adds a game to the registry, replacing any game of the same type.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Type() == "" {
		return fmt.Errorf("game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Type()] = g
	return nil
}

// Get retrieves a game by its type.
func (r *Registry) Get(t model.GameType) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[t]
	return g, ok
}

// List returns all registered games ordered by type.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Type() < games[j].Type() })
	return games
}

// Types returns all registered game types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.games))
	for t := range r.games {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Unregister removes a game. Returns true if it was present.
func (r *Registry) Unregister(t model.GameType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[t]; ok {
		delete(r.games, t)
		return true
	}
	return false
}
