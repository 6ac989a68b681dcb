package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pulse.report/internal/rppg/session"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// SessionRecord is a stored session summary.
type SessionRecord struct {
	SessionID   string          `json:"session_id"`
	CreatedAt   int64           `json:"created_at"` // unix nanoseconds
	StartMs     float64         `json:"start_ms"`
	EndMs       float64         `json:"end_ms"`
	SampleCount int             `json:"sample_count"`
	RangeBPM    session.Ranges  `json:"range_bpm"`
	TuningJSON  json.RawMessage `json:"tuning_json,omitempty"`
}

// SessionStore provides persistence for finalised sessions.
type SessionStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// OpenSessionStore opens (or creates) the database at path, applies the
// pragmas and migrates the schema. A nil clock uses the wall clock.
func OpenSessionStore(path string, clock timeutil.Clock) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSessionStore(db, clock), nil
}

// NewSessionStore wraps an already migrated database.
func NewSessionStore(db *sql.DB, clock timeutil.Clock) *SessionStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SessionStore{db: db, clock: clock}
}

// DB returns the underlying handle.
func (s *SessionStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SessionStore) Close() error { return s.db.Close() }

// Insert stores exp and its samples in one transaction and returns the new
// session ID. tuningJSON may be nil.
func (s *SessionStore) Insert(exp session.Export, tuningJSON json.RawMessage) (string, error) {
	id := uuid.New().String()
	createdAt := s.clock.Now().UnixNano()

	var tuning interface{}
	if len(tuningJSON) > 0 {
		tuning = string(tuningJSON)
	}
	hold, pub := exp.RangeBPM.Hold, exp.RangeBPM.Published

	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO rppg_sessions (
				session_id, created_at, start_ms, end_ms, sample_count,
				hold_min_bpm, hold_max_bpm, hold_count, hold_excluded,
				published_min_bpm, published_max_bpm, published_count, published_excluded,
				tuning_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, createdAt, exp.Session.StartMs, exp.Session.EndMs, exp.Session.SampleCount,
			nullable(hold.Min), nullable(hold.Max), hold.Count, hold.Excluded,
			nullable(pub.Min), nullable(pub.Max), pub.Count, pub.Excluded,
			tuning,
		); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO rppg_samples (
				session_id, seq, t_ms, published, held, reason,
				bpm, smoothed_bpm, confidence, resp_rate_bpm
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, smp := range exp.Samples {
			if _, err := stmt.Exec(id, i, smp.TimestampMs, smp.Published, smp.Held, smp.Reason,
				smp.BPM, smp.SmoothedBPM, smp.Confidence, smp.RespRateBPM); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

const sessionColumns = `
	session_id, created_at, start_ms, end_ms, sample_count,
	hold_min_bpm, hold_max_bpm, hold_count, hold_excluded,
	published_min_bpm, published_max_bpm, published_count, published_excluded,
	tuning_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*SessionRecord, error) {
	var r SessionRecord
	var holdMin, holdMax, pubMin, pubMax sql.NullFloat64
	var tuning sql.NullString
	err := row.Scan(
		&r.SessionID, &r.CreatedAt, &r.StartMs, &r.EndMs, &r.SampleCount,
		&holdMin, &holdMax, &r.RangeBPM.Hold.Count, &r.RangeBPM.Hold.Excluded,
		&pubMin, &pubMax, &r.RangeBPM.Published.Count, &r.RangeBPM.Published.Excluded,
		&tuning,
	)
	if err != nil {
		return nil, err
	}
	r.RangeBPM.Hold.Min, r.RangeBPM.Hold.Max = fromNull(holdMin), fromNull(holdMax)
	r.RangeBPM.Published.Min, r.RangeBPM.Published.Max = fromNull(pubMin), fromNull(pubMax)
	if tuning.Valid {
		r.TuningJSON = json.RawMessage(tuning.String)
	}
	return &r, nil
}

// Get returns a single session summary by ID.
func (s *SessionStore) Get(id string) (*SessionRecord, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM rppg_sessions WHERE session_id = ?`, id)
	r, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return r, nil
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (s *SessionStore) List(limit int) ([]*SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM rppg_sessions ORDER BY created_at DESC, session_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns a session's samples in tick order.
func (s *SessionStore) Samples(id string) ([]session.Sample, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT t_ms, published, held, reason, bpm, smoothed_bpm, confidence, resp_rate_bpm
		FROM rppg_samples
		WHERE session_id = ?
		ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []session.Sample
	for rows.Next() {
		var smp session.Sample
		if err := rows.Scan(&smp.TimestampMs, &smp.Published, &smp.Held, &smp.Reason,
			&smp.BPM, &smp.SmoothedBPM, &smp.Confidence, &smp.RespRateBPM); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Export reassembles the stored session as a session.Export.
func (s *SessionStore) Export(id string) (session.Export, error) {
	r, err := s.Get(id)
	if err != nil {
		return session.Export{}, err
	}
	samples, err := s.Samples(id)
	if err != nil {
		return session.Export{}, err
	}
	if samples == nil {
		samples = []session.Sample{}
	}
	return session.Export{
		Session:  session.Info{StartMs: r.StartMs, EndMs: r.EndMs, SampleCount: r.SampleCount},
		RangeBPM: r.RangeBPM,
		Samples:  samples,
	}, nil
}

// Delete removes a session and its samples.
func (s *SessionStore) Delete(id string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin delete: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM rppg_samples WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete samples: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM rppg_sessions WHERE session_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		return tx.Commit()
	})
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
