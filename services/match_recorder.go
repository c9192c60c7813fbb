package services

import (
	"time"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/persistence"
)

// MatchRecorder writes a match record whenever a room's game starts.
// Writes run off the caller's goroutine so the room start path never
// waits on the database; a failed write is logged and dropped.
type MatchRecorder struct {
	db persistence.Database
}

func NewMatchRecorder(db persistence.Database) *MatchRecorder {
	return &MatchRecorder{db: db}
}

// RecordStart is wired as the pool's started callback.
func (r *MatchRecorder) RecordStart(gameType, instanceKey string, playerIDs []int64) {
	rec := &models.MatchRecord{
		GameType:    gameType,
		InstanceKey: instanceKey,
		PlayerIDs:   playerIDs,
		StartedAt:   time.Now(),
	}

	go func() {
		if err := r.db.SaveMatchRecord(rec); err != nil {
			logger.Log.Errorf("Failed to save match record for %s: %v", instanceKey, err)
		}
	}()
}

// Recent returns the latest recorded matches.
func (r *MatchRecorder) Recent(limit int) ([]*models.MatchRecord, error) {
	return r.db.RecentMatchRecords(limit)
}
