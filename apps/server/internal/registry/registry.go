package registry

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"teenpatti-lite/apps/server/internal/room"
	"teenpatti-lite/apps/server/internal/store"
	"teenpatti-lite/teenpatti"
)

var (
	ErrGameNotFound = teenpatti.ErrGameNotFound
	ErrCapacity     = errors.New("registry at capacity")
)

// Registry owns every live room and hands out ids. Rooms left without any
// human connection are swept after idleTTL; swept sessions stay loadable
// through the store.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room

	maxGames   int
	defaultCfg teenpatti.Config
	deps       room.Deps

	sweepOnce sync.Once
	done      chan struct{}
}

const idleTTL = 10 * time.Minute

func New(defaultCfg teenpatti.Config, maxGames int, deps room.Deps) *Registry {
	return &Registry{
		rooms:      make(map[string]*room.Room),
		maxGames:   maxGames,
		defaultCfg: defaultCfg,
		deps:       deps,
		done:       make(chan struct{}),
	}
}

// Create makes a new room under a fresh id. A zero maxPlayers keeps the
// registry default.
func (r *Registry) Create(maxPlayers int) (*room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxGames > 0 && len(r.rooms) >= r.maxGames {
		return nil, ErrCapacity
	}

	cfg := r.defaultCfg
	if maxPlayers > 0 {
		cfg.MaxPlayers = maxPlayers
	}
	id := uuid.NewString()

	rm, err := room.New(id, cfg, r.deps)
	if err != nil {
		return nil, err
	}
	r.rooms[id] = rm
	log.Printf("[Registry] Created game %s (%d/%d)", id, len(r.rooms), r.maxGames)
	return rm, nil
}

// Get returns the resident room for an id. On a miss it falls back to the
// store: a session that was swept (or survived a restart) is revived at its
// last round boundary and becomes resident again.
func (r *Registry) Get(id string) (*room.Room, error) {
	id = strings.TrimSpace(id)

	r.mu.RLock()
	rm := r.rooms[id]
	r.mu.RUnlock()
	if rm != nil && !rm.IsClosed() {
		return rm, nil
	}

	return r.restore(id)
}

func (r *Registry) restore(id string) (*room.Room, error) {
	if r.deps.Store == nil || id == "" {
		return nil, ErrGameNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	snap, err := r.deps.Store.LoadSession(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[Registry] load session %s failed: %v", id, err)
		}
		return nil, ErrGameNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A concurrent Get may have restored it first.
	if rm := r.rooms[id]; rm != nil && !rm.IsClosed() {
		return rm, nil
	}
	if r.maxGames > 0 && len(r.rooms) >= r.maxGames {
		return nil, ErrCapacity
	}

	cfg := r.defaultCfg
	if snap.MinBet > 0 {
		cfg.MinBet = snap.MinBet
	}
	if len(snap.Seats) > 0 {
		cfg.MaxPlayers = len(snap.Seats)
	}
	cfg.Rules = snap.RuleFlags

	rm, err := room.NewFromSnapshot(snap, cfg, r.deps)
	if err != nil {
		log.Printf("[Registry] restore session %s failed: %v", id, err)
		return nil, ErrGameNotFound
	}
	r.rooms[id] = rm
	log.Printf("[Registry] Restored game %s (%d/%d)", id, len(r.rooms), r.maxGames)
	return rm, nil
}

// List returns the ids of all live rooms.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id, rm := range r.rooms {
		if !rm.IsClosed() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Remove stops a room and drops it from the index.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	rm := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()

	if rm != nil {
		rm.Stop()
		log.Printf("[Registry] Removed game %s", id)
	}
}

// StartSweeper closes idle rooms in the background until Close is called.
func (r *Registry) StartSweeper(interval time.Duration) {
	r.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.sweep()
				case <-r.done:
					return
				}
			}
		}()
	})
}

func (r *Registry) sweep() {
	r.mu.RLock()
	var idle []string
	for id, rm := range r.rooms {
		if rm.IsIdleFor(idleTTL) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		r.Remove(id)
		log.Printf("[Registry] Swept idle game %s", id)
	}
}

// Close stops the sweeper and every room.
func (r *Registry) Close() {
	close(r.done)
	r.mu.Lock()
	rooms := make([]*room.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.rooms = make(map[string]*room.Room)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.Stop()
	}
}
