package persistence

import (
	"fmt"

	"github.com/wfunc/matchserver/models"
)

// Database is the match record store. Two implementations exist: a
// GORM-backed one and a raw database/sql one over lib/pq.
type Database interface {
	SaveMatchRecord(rec *models.MatchRecord) error
	RecentMatchRecords(limit int) ([]*models.MatchRecord, error)
	Close() error
}

var ErrRecordNotFound = fmt.Errorf("record not found")
