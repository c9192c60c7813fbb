package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/logger"
)

var (
	// ErrInvalidGameType is returned for a join against an unknown game type.
	ErrInvalidGameType = errors.New("invalid game type")
	// ErrRoomFull is returned when admission fails even after retrying
	// against a freshly created instance.
	ErrRoomFull = errors.New("room full")
)

// JoinResult reports a successful admission.
type JoinResult struct {
	InstanceKey string
	Capacity    int
	Minimum     int
	Current     int
}

// GameTypeStats is a point-in-time view of one game type's instances.
type GameTypeStats struct {
	Instances int
	Players   int
}

// Pool owns the waiting room instances for every configured game
// type. The game type set is fixed at construction; instances are
// created as rooms fill and retired once they are exhausted.
type Pool struct {
	entries   map[string]*entry
	order     []string
	onStarted StartedFunc
}

// entry is the per-game-type instance set, guarded by its own mutex.
type entry struct {
	mu       sync.Mutex
	template Config
	counter  int
	rooms    map[string]*Room
	newest   *Room
}

func NewPool(templates []Config, onStarted StartedFunc) *Pool {
	p := &Pool{
		entries:   make(map[string]*entry),
		onStarted: onStarted,
	}
	for _, tmpl := range templates {
		p.entries[tmpl.GameType] = &entry{
			template: tmpl,
			rooms:    make(map[string]*Room),
		}
		p.order = append(p.order, tmpl.GameType)
	}
	return p
}

// GameTypes lists the configured game types in configuration order.
func (p *Pool) GameTypes() []string {
	types := make([]string, len(p.order))
	copy(types, p.order)
	return types
}

// Join admits a player to the open instance for a game type, creating
// one when the newest instance has already filled. Selection happens
// under the entry lock but admission is delegated to the room, which
// re-checks capacity under its own lock; a delegated failure means
// the room filled in between, so selection runs once more against a
// fresh instance instead of surfacing a false ErrRoomFull.
func (p *Pool) Join(gameType string, playerID int64, conn broadcast.Sender) (*JoinResult, error) {
	e, exists := p.entries[gameType]
	if !exists {
		return nil, ErrInvalidGameType
	}

	for attempt := 0; attempt < 2; attempt++ {
		e.mu.Lock()
		candidate := e.newest
		if candidate == nil || candidate.IsFull() {
			candidate = p.createLocked(e)
		}
		e.mu.Unlock()

		if current, ok := candidate.AddPlayer(playerID, conn); ok {
			return &JoinResult{
				InstanceKey: candidate.InstanceKey(),
				Capacity:    candidate.Capacity(),
				Minimum:     candidate.Minimum(),
				Current:     current,
			}, nil
		}
	}
	return nil, ErrRoomFull
}

// Leave removes a player from an instance and retires the instance
// once it reports exhausted. A stale instance key is a no-op.
func (p *Pool) Leave(gameType, instanceKey string, playerID int64) bool {
	e, exists := p.entries[gameType]
	if !exists {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, exists := e.rooms[instanceKey]
	if !exists {
		return false
	}

	removed, exhausted := r.RemovePlayer(playerID)
	if exhausted {
		delete(e.rooms, instanceKey)
		if e.newest == r {
			e.newest = nil
		}
		logger.Log.Infof("Room %s exhausted, retired from pool", instanceKey)
	}
	return removed
}

// Room looks up a live instance.
func (p *Pool) Room(gameType, instanceKey string) (*Room, bool) {
	e, exists := p.entries[gameType]
	if !exists {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	r, exists := e.rooms[instanceKey]
	return r, exists
}

// InstanceCount reports the total number of live instances.
func (p *Pool) InstanceCount() int {
	total := 0
	for _, e := range p.entries {
		e.mu.Lock()
		total += len(e.rooms)
		e.mu.Unlock()
	}
	return total
}

// Stats returns per-game-type instance and player counts.
func (p *Pool) Stats() map[string]GameTypeStats {
	stats := make(map[string]GameTypeStats, len(p.entries))
	for gameType, e := range p.entries {
		e.mu.Lock()
		s := GameTypeStats{Instances: len(e.rooms)}
		for _, r := range e.rooms {
			s.Players += r.Size()
		}
		e.mu.Unlock()
		stats[gameType] = s
	}
	return stats
}

func (p *Pool) createLocked(e *entry) *Room {
	e.counter++
	key := fmt.Sprintf("%s#%d", e.template.GameType, e.counter)
	r := NewRoom(key, e.template, p.onStarted)
	e.rooms[key] = r
	e.newest = r
	logger.Log.Infof("Created room instance %s (min=%d max=%d wait=%v)",
		key, e.template.MinPlayers, e.template.MaxPlayers, e.template.WaitTime)
	return r
}
