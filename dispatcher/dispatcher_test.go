package dispatcher

import (
	"sync"
	"testing"
	"time"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// MockConn records payloads sent to one player.
type MockConn struct {
	mu   sync.Mutex
	sent []interface{}
}

func (m *MockConn) SendJSON(v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, v)
	return nil
}

func (m *MockConn) countNotice(message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, v := range m.sent {
		if notice, ok := v.(network.Notice); ok && notice.Message == message {
			count++
		}
	}
	return count
}

func newTestDispatcher() (*Dispatcher, *session.Registry, *room.Pool) {
	registry := session.NewRegistry(10)
	pool := room.NewPool([]room.Config{
		{GameType: "Duel", MinPlayers: 1, MaxPlayers: 2, WaitTime: time.Minute},
		{GameType: "Arena", MinPlayers: 2, MaxPlayers: 4, WaitTime: time.Minute},
	}, nil)
	return New(registry, pool), registry, pool
}

// admit creates a session and walks it to the listing state.
func admit(t *testing.T, d *Dispatcher, registry *session.Registry) (int64, *MockConn) {
	t.Helper()
	id, err := registry.Admit()
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	conn := &MockConn{}
	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepListRooms})
	if _, ok := reply.(network.RoomList); !ok {
		t.Fatalf("list rooms failed: %#v", reply)
	}
	return id, conn
}

func isInvalidQuery(reply interface{}) bool {
	notice, ok := reply.(network.Notice)
	return ok && notice.Message == network.ErrTextInvalidQuery
}

func TestDispatcher_ListRooms(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, _ := registry.Admit()

	reply, closed := d.Dispatch(id, &MockConn{}, &network.Request{Step: network.StepListRooms})
	if closed {
		t.Fatal("list rooms must not close the connection")
	}
	list, ok := reply.(network.RoomList)
	if !ok {
		t.Fatalf("expected RoomList, got %#v", reply)
	}
	if len(list.Rooms) != 2 || list.Rooms[0] != "Duel" || list.Rooms[1] != "Arena" {
		t.Errorf("unexpected rooms: %v", list.Rooms)
	}
	if state, _ := registry.State(id); state != session.StateListing {
		t.Errorf("expected StateListing, got %v", state)
	}

	// Listing twice is a protocol violation, answered explicitly.
	reply, _ = d.Dispatch(id, &MockConn{}, &network.Request{Step: network.StepListRooms})
	if !isInvalidQuery(reply) {
		t.Errorf("expected invalid query, got %#v", reply)
	}
}

func TestDispatcher_JoinBeforeListingInvalid(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, _ := registry.Admit()

	reply, _ := d.Dispatch(id, &MockConn{}, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	if !isInvalidQuery(reply) {
		t.Errorf("expected invalid query, got %#v", reply)
	}
}

func TestDispatcher_JoinSuccess(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, conn := admit(t, d, registry)

	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})
	join, ok := reply.(network.JoinReply)
	if !ok {
		t.Fatalf("expected JoinReply, got %#v", reply)
	}
	if join.Room != "Arena" || join.Capacity != 4 || join.Minimum != 2 || join.Current != 1 {
		t.Errorf("unexpected join reply: %+v", join)
	}

	if state, _ := registry.State(id); state != session.StateInRoom {
		t.Errorf("expected StateInRoom, got %v", state)
	}
	binding, bound := registry.Binding(id)
	if !bound || binding.GameType != "Arena" {
		t.Errorf("binding not recorded: %+v (bound=%v)", binding, bound)
	}
}

func TestDispatcher_JoinInvalidRoom(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, conn := admit(t, d, registry)

	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Nowhere"})
	errReply, ok := reply.(network.ErrorReply)
	if !ok || errReply.Error != network.ErrTextInvalidRoom {
		t.Fatalf("expected invalid room error, got %#v", reply)
	}
	if state, _ := registry.State(id); state != session.StateListing {
		t.Errorf("state should be unchanged, got %v", state)
	}
}

func TestDispatcher_JoinSpillsWhenNewestFull(t *testing.T) {
	d, registry, pool := newTestDispatcher()

	// A full newest instance never bounces the joiner; the pool
	// spills into a freshly created instance instead.
	a, connA := admit(t, d, registry)
	b, connB := admit(t, d, registry)
	c, connC := admit(t, d, registry)
	d.Dispatch(a, connA, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	d.Dispatch(b, connB, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})

	reply, _ := d.Dispatch(c, connC, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	join, ok := reply.(network.JoinReply)
	if !ok {
		t.Fatalf("expected spill into a new instance, got %#v", reply)
	}
	if join.Current != 1 {
		t.Errorf("expected fresh instance count 1, got %d", join.Current)
	}
	if pool.InstanceCount() != 2 {
		t.Errorf("expected 2 instances, got %d", pool.InstanceCount())
	}
}

func TestDispatcher_SwitchRoomLeavesPrior(t *testing.T) {
	d, registry, pool := newTestDispatcher()
	id, conn := admit(t, d, registry)

	d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})
	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	if _, ok := reply.(network.JoinReply); !ok {
		t.Fatalf("switch failed: %#v", reply)
	}

	prior, ok := pool.Room("Arena", "Arena#1")
	if !ok {
		t.Fatal("prior instance missing")
	}
	if prior.Size() != 0 {
		t.Errorf("prior room should be empty after the switch, got %d", prior.Size())
	}

	binding, _ := registry.Binding(id)
	if binding.GameType != "Duel" {
		t.Errorf("binding not updated: %+v", binding)
	}
}

func TestDispatcher_FailedSwitchLeavesSessionUnbound(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, conn := admit(t, d, registry)

	d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})
	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Nowhere"})
	if _, ok := reply.(network.ErrorReply); !ok {
		t.Fatalf("expected error reply, got %#v", reply)
	}

	// The old room was left; the session may list and join again.
	if _, bound := registry.Binding(id); bound {
		t.Error("session should be unbound after a failed switch")
	}
	if state, _ := registry.State(id); state != session.StateListing {
		t.Errorf("expected StateListing, got %v", state)
	}
	reply, _ = d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	if _, ok := reply.(network.JoinReply); !ok {
		t.Errorf("rejoin after failed switch should work, got %#v", reply)
	}
}

func TestDispatcher_TransformBeforeStart(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, conn := admit(t, d, registry)
	d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})

	reply, _ := d.Dispatch(id, conn, &network.Request{
		Step:      network.StepTransform,
		Transform: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	})
	status, ok := reply.(network.Status)
	if !ok || status.Status != network.StatusNotEnoughPlayers {
		t.Fatalf("expected not-enough-players status, got %#v", reply)
	}
}

func TestDispatcher_TransformMissingArray(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	a, connA := admit(t, d, registry)
	b, connB := admit(t, d, registry)
	d.Dispatch(a, connA, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	d.Dispatch(b, connB, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})

	reply, _ := d.Dispatch(a, connA, &network.Request{Step: network.StepTransform})
	status, ok := reply.(network.Status)
	if !ok || status.Status != network.StatusNoTransform {
		t.Fatalf("expected no-transform status, got %#v", reply)
	}
}

func TestDispatcher_TransformReturnsRoomSnapshot(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	a, connA := admit(t, d, registry)
	b, connB := admit(t, d, registry)
	outsider, connO := admit(t, d, registry)

	// Filling Duel to capacity starts the game.
	d.Dispatch(a, connA, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	d.Dispatch(b, connB, &network.Request{Step: network.StepJoinRoom, GameType: "Duel"})
	d.Dispatch(outsider, connO, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})

	sent := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	reply, _ := d.Dispatch(a, connA, &network.Request{Step: network.StepTransform, Transform: sent})
	transforms, ok := reply.(network.Transforms)
	if !ok {
		t.Fatalf("expected Transforms, got %#v", reply)
	}

	if len(transforms.Transforms) != 2 {
		t.Fatalf("snapshot should cover exactly the room membership, got %d entries", len(transforms.Transforms))
	}
	if _, exists := transforms.Transforms[outsider]; exists {
		t.Error("snapshot leaked a session outside the room")
	}
	got := transforms.Transforms[a]
	for i, v := range sent {
		if got[i] != v {
			t.Fatalf("transform[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestDispatcher_TransformOutsideRoomInvalid(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, conn := admit(t, d, registry)

	reply, _ := d.Dispatch(id, conn, &network.Request{Step: network.StepTransform, Transform: []float64{1}})
	if !isInvalidQuery(reply) {
		t.Errorf("expected invalid query, got %#v", reply)
	}
}

func TestDispatcher_UnknownStepInvalid(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, _ := registry.Admit()

	reply, closed := d.Dispatch(id, &MockConn{}, &network.Request{Step: 42})
	if closed {
		t.Fatal("unknown step must not close the connection")
	}
	if !isInvalidQuery(reply) {
		t.Errorf("expected invalid query, got %#v", reply)
	}
}

func TestDispatcher_ExitCleansUpOnce(t *testing.T) {
	d, registry, pool := newTestDispatcher()
	a, connA := admit(t, d, registry)
	b, connB := admit(t, d, registry)
	d.Dispatch(a, connA, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})
	d.Dispatch(b, connB, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})

	reply, closed := d.Dispatch(a, connA, &network.Request{Step: network.StepExit})
	if reply != nil || !closed {
		t.Fatalf("exit should close silently, got reply=%#v closed=%v", reply, closed)
	}
	if _, exists := registry.State(a); exists {
		t.Fatal("session should be released on exit")
	}

	r, _ := pool.Room("Arena", "Arena#1")
	if r.Size() != 1 {
		t.Fatalf("room should have 1 member left, got %d", r.Size())
	}

	// The transport's disconnect path runs after an explicit exit;
	// membership must not be double-decremented nor the departure
	// double-broadcast.
	d.Disconnect(a)
	if r.Size() != 1 {
		t.Errorf("disconnect after exit changed membership: %d", r.Size())
	}
	if got := connB.countNotice(network.MsgPlayerLeft); got != 1 {
		t.Errorf("expected exactly one player-left notice, got %d", got)
	}
}

func TestDispatcher_DisconnectWithoutExit(t *testing.T) {
	d, registry, pool := newTestDispatcher()
	id, conn := admit(t, d, registry)
	d.Dispatch(id, conn, &network.Request{Step: network.StepJoinRoom, GameType: "Arena"})

	d.Disconnect(id)
	if _, exists := registry.State(id); exists {
		t.Fatal("session should be released on disconnect")
	}
	r, _ := pool.Room("Arena", "Arena#1")
	if r.Size() != 0 {
		t.Errorf("room should be empty after disconnect, got %d", r.Size())
	}

	// Idempotent.
	d.Disconnect(id)
}

func TestDispatcher_ExitFromUnjoinedInvalid(t *testing.T) {
	d, registry, _ := newTestDispatcher()
	id, _ := registry.Admit()

	reply, closed := d.Dispatch(id, &MockConn{}, &network.Request{Step: network.StepExit})
	if closed {
		t.Fatal("exit from Unjoined must not close the connection")
	}
	if !isInvalidQuery(reply) {
		t.Errorf("expected invalid query, got %#v", reply)
	}
}
