package network

import "fmt"

// Protocol steps carried in the JSON envelope. The client drives the
// session with steps 1-4; step 0 is the server's connection welcome.
const (
	StepWelcome   = 0
	StepListRooms = 1
	StepJoinRoom  = 2
	StepTransform = 3
	StepExit      = 4
)

// StepStarted marks the "game started" broadcast. The fractional value
// is part of the wire protocol and must not change.
const StepStarted = 2.5

// Error and status strings, verbatim from the protocol.
const (
	ErrTextServerFull   = "Server is full"
	ErrTextRoomFull     = "Room full"
	ErrTextInvalidRoom  = "Invalid room"
	ErrTextInvalidQuery = "Invalid Query"

	StatusNoTransform      = "No transform array provided"
	StatusNotEnoughPlayers = "The Room Doesn't have enough players."
)

const (
	MsgPlayerJoined = "A new player has joined the room!"
	MsgPlayerLeft   = "A player has left the room!"
	MsgRoomFull     = "The room is full!"
)

// Request is one inbound protocol envelope.
type Request struct {
	Step      int       `json:"step"`
	GameType  string    `json:"game_type,omitempty"`
	Transform []float64 `json:"transform,omitempty"`
}

type Welcome struct {
	Step int   `json:"step"`
	ID   int64 `json:"id"`
}

type ErrorReply struct {
	Step  int    `json:"step"`
	Error string `json:"error"`
}

type RoomList struct {
	Step  int      `json:"step"`
	Rooms []string `json:"rooms"`
}

type JoinReply struct {
	Step     int    `json:"step"`
	Room     string `json:"room"`
	Capacity int    `json:"capacity"`
	Current  int    `json:"current"`
	Minimum  int    `json:"minimum"`
}

type Transforms struct {
	Step       int                   `json:"step"`
	Transforms map[int64][12]float64 `json:"transforms"`
}

type Status struct {
	Step   int    `json:"step"`
	Status string `json:"status"`
}

// Started is the quorum-reached broadcast; Step is always StepStarted.
type Started struct {
	Step   float64 `json:"step"`
	Status string  `json:"status"`
}

// Notice is an informational room broadcast.
type Notice struct {
	Message string `json:"message"`
}

func NewWelcome(id int64) Welcome {
	return Welcome{Step: StepWelcome, ID: id}
}

func NewStarted() Started {
	return Started{Step: StepStarted, Status: "started"}
}

// NewMinimumReached announces the countdown to every member once the
// quorum arrives. secs is the remaining time, not the full wait.
func NewMinimumReached(secs int) Notice {
	return Notice{Message: fmt.Sprintf("Minimum Players have joined the room. Game will start in %d secs.", secs)}
}

// NewCountdownStatus tells a joiner of an armed room how long is left.
func NewCountdownStatus(secs int) Notice {
	return Notice{Message: fmt.Sprintf("Game will start in %d secs.", secs)}
}
