package models

import (
	"encoding/json"
	"time"
)

// MatchRecordRow is the GORM table mapping for MatchRecord. Player
// ids are stored as a JSONB array.
type MatchRecordRow struct {
	ID          uint      `gorm:"primaryKey"`
	GameType    string    `gorm:"index;not null"`
	InstanceKey string    `gorm:"not null"`
	PlayerIDs   string    `gorm:"type:jsonb;not null"`
	StartedAt   time.Time `gorm:"index"`
}

func (MatchRecordRow) TableName() string {
	return "match_records"
}

func NewMatchRecordRow(rec *MatchRecord) (*MatchRecordRow, error) {
	ids, err := json.Marshal(rec.PlayerIDs)
	if err != nil {
		return nil, err
	}
	return &MatchRecordRow{
		GameType:    rec.GameType,
		InstanceKey: rec.InstanceKey,
		PlayerIDs:   string(ids),
		StartedAt:   rec.StartedAt,
	}, nil
}

func (row *MatchRecordRow) ToRecord() (*MatchRecord, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(row.PlayerIDs), &ids); err != nil {
		return nil, err
	}
	return &MatchRecord{
		GameType:    row.GameType,
		InstanceKey: row.InstanceKey,
		PlayerIDs:   ids,
		StartedAt:   row.StartedAt,
	}, nil
}
