package dispatcher

import (
	"errors"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/session"
)

// Dispatcher routes one protocol step to the registry and the room
// pool and produces the reply for the transport to deliver. Each
// session's messages arrive on a single goroutine; shared state below
// the dispatcher is guarded by the components themselves.
type Dispatcher struct {
	registry *session.Registry
	pool     *room.Pool
}

func New(registry *session.Registry, pool *room.Pool) *Dispatcher {
	return &Dispatcher{registry: registry, pool: pool}
}

// Dispatch handles one request for a session. A nil reply means
// nothing goes back to the caller; closed reports that the session
// ended and the transport should close the connection.
func (d *Dispatcher) Dispatch(playerID int64, conn broadcast.Sender, req *network.Request) (reply interface{}, closed bool) {
	state, exists := d.registry.State(playerID)
	if !exists {
		return invalidQuery(), false
	}

	switch req.Step {
	case network.StepListRooms:
		if state != session.StateUnjoined {
			return invalidQuery(), false
		}
		d.registry.SetState(playerID, session.StateListing)
		return network.RoomList{Step: network.StepListRooms, Rooms: d.pool.GameTypes()}, false

	case network.StepJoinRoom:
		if state != session.StateListing && state != session.StateInRoom {
			return invalidQuery(), false
		}
		return d.handleJoin(playerID, conn, req, state), false

	case network.StepTransform:
		if state != session.StateInRoom {
			return invalidQuery(), false
		}
		return d.handleTransform(playerID, req), false

	case network.StepExit:
		if state != session.StateListing && state != session.StateInRoom {
			return invalidQuery(), false
		}
		d.cleanup(playerID)
		logger.Log.Infof("Player %d exited", playerID)
		return nil, true

	default:
		return invalidQuery(), false
	}
}

// Disconnect runs the exit cleanup for an abnormally terminated
// connection. Safe to call after an explicit exit already ran it; the
// registry and pool treat the second pass as a no-op.
func (d *Dispatcher) Disconnect(playerID int64) {
	if _, exists := d.registry.State(playerID); !exists {
		return
	}
	d.cleanup(playerID)
	logger.Log.Infof("Cleaned up player %d after disconnect", playerID)
}

func (d *Dispatcher) handleJoin(playerID int64, conn broadcast.Sender, req *network.Request, state session.State) interface{} {
	// Switching rooms: leave the old instance first. If the new join
	// then fails the session stays unbound in the listing state and
	// may pick another room.
	if state == session.StateInRoom {
		if binding, bound := d.registry.Binding(playerID); bound {
			d.pool.Leave(binding.GameType, binding.InstanceKey, playerID)
		}
		d.registry.ClearBinding(playerID)
		d.registry.SetState(playerID, session.StateListing)
	}

	result, err := d.pool.Join(req.GameType, playerID, conn)
	switch {
	case errors.Is(err, room.ErrInvalidGameType):
		return network.ErrorReply{Step: network.StepJoinRoom, Error: network.ErrTextInvalidRoom}
	case errors.Is(err, room.ErrRoomFull):
		return network.ErrorReply{Step: network.StepJoinRoom, Error: network.ErrTextRoomFull}
	case err != nil:
		logger.Log.Errorf("Join failed for player %d: %v", playerID, err)
		return network.ErrorReply{Step: network.StepJoinRoom, Error: network.ErrTextRoomFull}
	}

	d.registry.SetBinding(playerID, req.GameType, result.InstanceKey)
	d.registry.SetState(playerID, session.StateInRoom)
	logger.Log.Infof("Player %d joined %s (%d/%d)", playerID, result.InstanceKey, result.Current, result.Capacity)

	return network.JoinReply{
		Step:     network.StepJoinRoom,
		Room:     req.GameType,
		Capacity: result.Capacity,
		Current:  result.Current,
		Minimum:  result.Minimum,
	}
}

func (d *Dispatcher) handleTransform(playerID int64, req *network.Request) interface{} {
	binding, bound := d.registry.Binding(playerID)
	if !bound {
		return network.Status{Step: network.StepTransform, Status: network.StatusNotEnoughPlayers}
	}

	r, exists := d.pool.Room(binding.GameType, binding.InstanceKey)
	if !exists || !r.Started() {
		return network.Status{Step: network.StepTransform, Status: network.StatusNotEnoughPlayers}
	}

	if len(req.Transform) == 0 {
		return network.Status{Step: network.StepTransform, Status: network.StatusNoTransform}
	}

	d.registry.SetTransform(playerID, req.Transform)

	// Membership snapshot first, then the registry; the registry is
	// never locked under a room lock.
	memberIDs := r.MemberIDs()
	return network.Transforms{
		Step:       network.StepTransform,
		Transforms: d.registry.SnapshotTransforms(memberIDs),
	}
}

func (d *Dispatcher) cleanup(playerID int64) {
	if binding, bound := d.registry.Binding(playerID); bound {
		d.pool.Leave(binding.GameType, binding.InstanceKey, playerID)
	}
	d.registry.Release(playerID)
}

func invalidQuery() network.Notice {
	return network.Notice{Message: network.ErrTextInvalidQuery}
}
