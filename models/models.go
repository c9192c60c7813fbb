package models

import (
	"time"
)

// MatchRecord is the audit entry written when a waiting room's game
// starts. Live room and session state is never persisted; this is a
// write-only log of started matches.
type MatchRecord struct {
	GameType    string    `json:"game_type"`
	InstanceKey string    `json:"instance_key"`
	PlayerIDs   []int64   `json:"player_ids"`
	StartedAt   time.Time `json:"started_at"`
}
