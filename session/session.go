package session

import (
	"errors"
	"sync"
)

// State tracks where a session is in the protocol flow.
type State int

const (
	StateUnjoined State = iota
	StateListing
	StateInRoom
)

// TransformSize is the fixed length of a player transform vector
// (position, rotation, scale as 4x3 floats).
const TransformSize = 12

// RoomBinding records which waiting room instance a session joined.
type RoomBinding struct {
	GameType    string
	InstanceKey string
}

// PlayerSession is the server-side state of one connected player. It
// is owned exclusively by the Registry; other components refer to a
// session by its id only.
type PlayerSession struct {
	ID        int64
	State     State
	Transform [TransformSize]float64
	Room      *RoomBinding
}

// ErrServerFull is returned by Admit when the registry is at capacity.
var ErrServerFull = errors.New("server is full")

// Registry owns the session table. Every operation runs under one
// mutex so concurrent connections cannot lose updates to each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*PlayerSession
	nextID   int64
	capacity int
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		sessions: make(map[int64]*PlayerSession),
		capacity: capacity,
	}
}

// Admit creates a new session and returns its id. Ids are assigned
// monotonically and never reused for the process lifetime.
func (r *Registry) Admit() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity {
		return 0, ErrServerFull
	}

	id := r.nextID
	r.nextID++
	r.sessions[id] = &PlayerSession{ID: id, State: StateUnjoined}
	return id, nil
}

// Release removes a session. Releasing an absent id is a no-op, so
// the exit and disconnect cleanup paths may both call it.
func (r *Registry) Release(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SetTransform stores the latest transform for a session. Updates for
// a session that no longer exists are dropped silently; a racing
// update after disconnect is expected, not an error.
func (r *Registry) SetTransform(id int64, transform []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return
	}

	n := len(transform)
	if n > TransformSize {
		n = TransformSize
	}
	var fixed [TransformSize]float64
	copy(fixed[:], transform[:n])
	sess.Transform = fixed
}

// SnapshotTransforms returns id -> transform for the requested ids
// that currently exist. An empty id list returns all known sessions.
func (r *Registry) SnapshotTransforms(ids []int64) map[int64][TransformSize]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[int64][TransformSize]float64)
	if len(ids) == 0 {
		for id, sess := range r.sessions {
			result[id] = sess.Transform
		}
		return result
	}

	for _, id := range ids {
		if sess, exists := r.sessions[id]; exists {
			result[id] = sess.Transform
		}
	}
	return result
}

// State reports a session's protocol state.
func (r *Registry) State(id int64) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return StateUnjoined, false
	}
	return sess.State, true
}

func (r *Registry) SetState(id int64, state State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return false
	}
	sess.State = state
	return true
}

// Binding reports the room a session is bound to, if any.
func (r *Registry) Binding(id int64) (RoomBinding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists || sess.Room == nil {
		return RoomBinding{}, false
	}
	return *sess.Room, true
}

func (r *Registry) SetBinding(id int64, gameType, instanceKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return false
	}
	sess.Room = &RoomBinding{GameType: gameType, InstanceKey: instanceKey}
	return true
}

func (r *Registry) ClearBinding(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, exists := r.sessions[id]; exists {
		sess.Room = nil
	}
}
