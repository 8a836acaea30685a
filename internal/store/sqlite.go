package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/railqr/railqr-service/internal/models"
)

// DB is the local audit database. It is always SQLite, whatever backend
// holds the inventory.
type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS predictions(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		reply_to TEXT,
		kind TEXT,
		params_json TEXT,
		outcome TEXT,
		failure TEXT,
		response TEXT,
		dur_ms REAL,
		error TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions table: %w", err)
	}

	return &DB{db}, nil
}

// Event records an operational event. Failures are ignored; the audit log
// must never break the request path.
func (db *DB) Event(level, code, msg string, meta map[string]any) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		unixSeconds(time.Now()), level, code, msg, m)
}

// Prediction records one prediction request and its result.
func (db *DB) Prediction(ctx context.Context, p *models.PredictionLog) error {
	_, err := db.ExecContext(ctx, `INSERT INTO predictions(
		ts, req_id, worker_id, source, reply_to, kind, params_json, outcome, failure, response, dur_ms, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		unixSeconds(p.Timestamp), p.ReqID, p.WorkerID, p.Source, p.ReplyTo, p.Kind, p.ParamsJSON,
		p.Outcome, p.Failure, p.Response, float64(p.DurationMs), p.Error)
	return err
}

// Predictions returns the most recent prediction logs, newest first.
func (db *DB) Predictions(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	rows, err := db.QueryContext(ctx, `SELECT ts,req_id,worker_id,source,reply_to,kind,params_json,outcome,failure,response,dur_ms,error
		FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.PredictionLog{}
	for rows.Next() {
		var p models.PredictionLog
		var ts, dur float64
		if err := rows.Scan(&ts, &p.ReqID, &p.WorkerID, &p.Source, &p.ReplyTo, &p.Kind, &p.ParamsJSON,
			&p.Outcome, &p.Failure, &p.Response, &dur, &p.Error); err != nil {
			return nil, err
		}
		p.Timestamp = time.Unix(0, int64(ts*1e9))
		p.DurationMs = int64(dur)
		logs = append(logs, &p)
	}
	return logs, rows.Err()
}

// Events returns the most recent events, newest first.
func (db *DB) Events(ctx context.Context, limit int) ([]*models.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT ts,level,code,msg,meta FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		var e models.Event
		var ts float64
		var meta string
		if err := rows.Scan(&ts, &e.Level, &e.Code, &e.Msg, &meta); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, int64(ts*1e9))
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &e.Meta)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
