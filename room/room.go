package room

import (
	"math"
	"sync"
	"time"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/timer"
)

// Config is the immutable template a game type's room instances are
// created from.
type Config struct {
	GameType   string
	MinPlayers int
	MaxPlayers int
	WaitTime   time.Duration
}

// StartedFunc is invoked, outside any room lock, when a room's game
// starts (by timer or by filling to capacity).
type StartedFunc func(gameType, instanceKey string, playerIDs []int64)

type member struct {
	id   int64
	conn broadcast.Sender
}

// delivery is one pending notification, captured under the room lock
// and sent after it is released.
type delivery struct {
	targets []broadcast.Target
	payload interface{}
}

// Room is a single bounded-capacity waiting room instance. Membership
// runs Filling -> Armed (quorum reached, countdown running) ->
// Started; a room that reached capacity and later emptied is
// exhausted and gets retired by the pool.
type Room struct {
	gameType    string
	instanceKey string
	minPlayers  int
	maxPlayers  int
	waitTime    time.Duration
	onStarted   StartedFunc

	mu        sync.Mutex
	members   []member // join order
	armed     bool
	started   bool
	full      bool // latched: capacity was reached at least once
	exhausted bool
	countdown *timer.Countdown
	armGen    uint64 // bumped on every arm/cancel; stale fires check it
}

func NewRoom(instanceKey string, cfg Config, onStarted StartedFunc) *Room {
	return &Room{
		gameType:    cfg.GameType,
		instanceKey: instanceKey,
		minPlayers:  cfg.MinPlayers,
		maxPlayers:  cfg.MaxPlayers,
		waitTime:    cfg.WaitTime,
		onStarted:   onStarted,
	}
}

func (r *Room) GameType() string    { return r.gameType }
func (r *Room) InstanceKey() string { return r.instanceKey }
func (r *Room) Capacity() int       { return r.maxPlayers }
func (r *Room) Minimum() int        { return r.minPlayers }

// AddPlayer admits a player, re-checking capacity under the room's
// own lock. A false return means the room filled concurrently; the
// pool reacts by retrying against a fresh instance.
func (r *Room) AddPlayer(id int64, conn broadcast.Sender) (int, bool) {
	r.mu.Lock()

	// Exhausted covers the window where the instance was retired
	// between pool selection and delegation.
	if r.exhausted || len(r.members) >= r.maxPlayers {
		r.mu.Unlock()
		return 0, false
	}

	alreadyStarted := r.started
	var out []delivery
	var startedIDs []int64

	// Join notice goes to the members present before the insertion.
	out = append(out, delivery{targets: r.targetsLocked(), payload: network.Notice{Message: network.MsgPlayerJoined}})

	r.members = append(r.members, member{id: id, conn: conn})
	size := len(r.members)

	if size == r.minPlayers && size < r.maxPlayers {
		r.armLocked()
		out = append(out, delivery{
			targets: r.targetsLocked(),
			payload: network.NewMinimumReached(r.remainingSecsLocked()),
		})
	} else if r.armed && size < r.maxPlayers {
		// Late arrival while the countdown runs: tell only the joiner
		// how much time is left, never a fresh wait_time.
		out = append(out, delivery{
			targets: []broadcast.Target{{PlayerID: id, Conn: conn}},
			payload: network.NewCountdownStatus(r.remainingSecsLocked()),
		})
	}

	if size == r.maxPlayers {
		r.full = true
		out = append(out, delivery{targets: r.targetsLocked(), payload: network.Notice{Message: network.MsgRoomFull}})
		if !r.started {
			r.started = true
			r.cancelCountdownLocked()
			out = append(out, delivery{targets: r.targetsLocked(), payload: network.NewStarted()})
			startedIDs = r.memberIDsLocked()
		}
	}

	if alreadyStarted {
		// Joining a room whose game is already running.
		out = append(out, delivery{
			targets: []broadcast.Target{{PlayerID: id, Conn: conn}},
			payload: network.NewStarted(),
		})
	}

	r.mu.Unlock()

	r.flush(out)
	r.notifyStarted(startedIDs)
	return size, true
}

// RemovePlayer deletes a member and reports whether the room is now
// exhausted. Removing an absent player is a no-op.
func (r *Room) RemovePlayer(id int64) (removed bool, exhausted bool) {
	r.mu.Lock()

	idx := -1
	for i, m := range r.members {
		if m.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false, false
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)

	if len(r.members) < r.minPlayers {
		r.started = false
		r.cancelCountdownLocked()
	}

	out := []delivery{{targets: r.targetsLocked(), payload: network.Notice{Message: network.MsgPlayerLeft}}}

	if len(r.members) == 0 && r.full {
		r.exhausted = true
	}
	exhausted = r.exhausted

	r.mu.Unlock()

	r.flush(out)
	return true, exhausted
}

// timerFire runs when the countdown elapses. The arming generation is
// validated under the lock: a fire racing a cancel that already won
// discards itself here.
func (r *Room) timerFire(gen uint64) {
	r.mu.Lock()

	if gen != r.armGen || !r.armed || len(r.members) < r.minPlayers {
		r.mu.Unlock()
		return
	}

	r.armed = false
	r.countdown = nil
	r.started = true
	startedIDs := r.memberIDsLocked()
	out := []delivery{{targets: r.targetsLocked(), payload: network.NewStarted()}}

	r.mu.Unlock()

	logger.Log.Infof("Room %s countdown elapsed, game started with %d players", r.instanceKey, len(startedIDs))
	r.flush(out)
	r.notifyStarted(startedIDs)
}

// RemainingTime reports the time left on the countdown. ok is false
// when the room is not armed.
func (r *Room) RemainingTime() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.armed || r.countdown == nil {
		return 0, false
	}
	return r.countdown.Remaining(), true
}

func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// IsFull reports whether capacity was ever reached. It stays true
// even after members leave; the pool never reopens a filled room.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// MemberIDs returns the current membership in join order.
func (r *Room) MemberIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberIDsLocked()
}

func (r *Room) memberIDsLocked() []int64 {
	ids := make([]int64, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.id)
	}
	return ids
}

func (r *Room) targetsLocked() []broadcast.Target {
	targets := make([]broadcast.Target, 0, len(r.members))
	for _, m := range r.members {
		targets = append(targets, broadcast.Target{PlayerID: m.id, Conn: m.conn})
	}
	return targets
}

func (r *Room) armLocked() {
	r.armed = true
	r.armGen++
	gen := r.armGen
	r.countdown = timer.NewCountdown(r.waitTime, func() { r.timerFire(gen) })
	logger.Log.Infof("Room %s armed, starting in %v", r.instanceKey, r.waitTime)
}

func (r *Room) cancelCountdownLocked() {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
	r.armed = false
	r.armGen++
}

func (r *Room) remainingSecsLocked() int {
	if r.countdown == nil {
		return 0
	}
	return int(math.Ceil(r.countdown.Remaining().Seconds()))
}

// flush performs the network sends collected under the lock.
func (r *Room) flush(out []delivery) {
	for _, d := range out {
		broadcast.Fanout(d.targets, d.payload)
	}
}

func (r *Room) notifyStarted(playerIDs []int64) {
	if len(playerIDs) == 0 || r.onStarted == nil {
		return
	}
	r.onStarted(r.gameType, r.instanceKey, playerIDs)
}
