package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/matchserver/models"
)

// PostgreSQL is the raw database/sql match record store.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            game_type TEXT NOT NULL,
            instance_key TEXT NOT NULL,
            player_ids JSONB NOT NULL,
            started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_match_records_game_type ON match_records (game_type)`)
	return err
}

func (p *PostgreSQL) SaveMatchRecord(rec *models.MatchRecord) error {
	ids, err := json.Marshal(rec.PlayerIDs)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(
		`INSERT INTO match_records (game_type, instance_key, player_ids, started_at) VALUES ($1, $2, $3, $4)`,
		rec.GameType, rec.InstanceKey, ids, rec.StartedAt,
	)
	return err
}

func (p *PostgreSQL) RecentMatchRecords(limit int) ([]*models.MatchRecord, error) {
	rows, err := p.db.Query(
		`SELECT game_type, instance_key, player_ids, started_at FROM match_records ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.MatchRecord
	for rows.Next() {
		var rec models.MatchRecord
		var ids []byte
		if err := rows.Scan(&rec.GameType, &rec.InstanceKey, &ids, &rec.StartedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ids, &rec.PlayerIDs); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
