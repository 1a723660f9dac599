package history

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/foldsense/devstate-go/pkg/log"
)

// Transition is one recorded state change.
type Transition struct {
	SessionID string
	At        time.Time
	Entity    log.StateEntity
	From      int
	To        int
	ToName    string
	Reason    string
}

// RequestRecord is one recorded request action.
type RequestRecord struct {
	SessionID string
	At        time.Time
	ClientID  string
	Token     string
	State     int
	Flags     uint32
	Action    log.RequestAction
	Reason    string
}

// Store provides SQLite persistence for coordinator history.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
	failed uint64
}

// NewStore opens the database at dbPath. Use ":memory:" for an in-memory
// database. A nil logger discards write failures.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at_ns INTEGER NOT NULL,
		entity INTEGER NOT NULL,
		from_state INTEGER NOT NULL,
		to_state INTEGER NOT NULL,
		to_name TEXT,
		reason TEXT
	);

	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at_ns INTEGER NOT NULL,
		client_id TEXT,
		token TEXT NOT NULL,
		state INTEGER NOT NULL,
		flags INTEGER NOT NULL DEFAULT 0,
		action INTEGER NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_entity ON transitions(entity, at_ns);
	CREATE INDEX IF NOT EXISTS idx_requests_token ON requests(token);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Failed returns the number of events that could not be stored.
func (s *Store) Failed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// Log implements log.Logger. Supported-set changes, policy phases and
// errors are not stored.
func (s *Store) Log(event log.Event) {
	var err error
	switch {
	case event.StateChange != nil && event.StateChange.Entity != log.StateEntitySupported:
		err = s.AddTransition(Transition{
			SessionID: event.SessionID,
			At:        event.Timestamp,
			Entity:    event.StateChange.Entity,
			From:      event.StateChange.Old,
			To:        event.StateChange.New,
			ToName:    event.StateChange.NewName,
			Reason:    event.StateChange.Reason,
		})
	case event.Request != nil:
		err = s.AddRequest(RequestRecord{
			SessionID: event.SessionID,
			At:        event.Timestamp,
			ClientID:  event.ClientID,
			Token:     event.Request.Token,
			State:     event.Request.State,
			Flags:     event.Request.Flags,
			Action:    event.Request.Action,
			Reason:    event.Request.Reason,
		})
	default:
		return
	}

	if err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.logger.Warn("history write failed", "category", event.Category.String(), "error", err)
	}
}

// AddTransition stores a state transition.
func (s *Store) AddTransition(t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO transitions (session_id, at_ns, entity, from_state, to_state, to_name, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.SessionID, t.At.UnixNano(), int(t.Entity), t.From, t.To, t.ToName, t.Reason)
	return err
}

// AddRequest stores a request action.
func (s *Store) AddRequest(r RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO requests (session_id, at_ns, client_id, token, state, flags, action, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.At.UnixNano(), r.ClientID, r.Token, r.State, int64(r.Flags), int(r.Action), r.Reason)
	return err
}

// Transitions returns the most recent committed-state transitions, oldest
// first. A limit of zero or less returns all of them.
func (s *Store) Transitions(limit int) ([]Transition, error) {
	return s.StateChanges(log.StateEntityCommitted, limit)
}

// StateChanges returns the most recent transitions of entity, oldest first.
func (s *Store) StateChanges(entity log.StateEntity, limit int) ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT session_id, at_ns, entity, from_state, to_state, to_name, reason FROM (
			SELECT id, session_id, at_ns, entity, from_state, to_state, to_name, reason
			FROM transitions WHERE entity = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, int(entity), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var atNs int64
		var ent int
		var name, reason sql.NullString
		if err := rows.Scan(&t.SessionID, &atNs, &ent, &t.From, &t.To, &name, &reason); err != nil {
			return nil, err
		}
		t.At = time.Unix(0, atNs)
		t.Entity = log.StateEntity(ent)
		t.ToName = name.String
		t.Reason = reason.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// Requests returns every recorded action for token in order.
func (s *Store) Requests(token string) ([]RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT session_id, at_ns, client_id, token, state, flags, action, reason
		FROM requests WHERE token = ? ORDER BY id ASC
	`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var r RequestRecord
		var atNs, flags int64
		var action int
		var client, reason sql.NullString
		if err := rows.Scan(&r.SessionID, &atNs, &client, &r.Token, &r.State, &flags, &action, &reason); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, atNs)
		r.ClientID = client.String
		r.Flags = uint32(flags)
		r.Action = log.RequestAction(action)
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Residency returns how long the device spent committed to each state.
// A committed state lasts until the next committed transition of the same
// session. The last one of an earlier session ends with that session's last
// recorded event, so time between daemon runs is not counted. The latest
// transition overall lasts until now.
func (s *Store) Residency(now time.Time) (map[int]time.Duration, error) {
	transitions, err := s.Transitions(0)
	if err != nil {
		return nil, err
	}
	ends, err := s.sessionEnds()
	if err != nil {
		return nil, err
	}

	out := make(map[int]time.Duration)
	for i, t := range transitions {
		end := now
		if i+1 < len(transitions) {
			if next := transitions[i+1]; next.SessionID == t.SessionID {
				end = next.At
			} else {
				end = ends[t.SessionID]
			}
		}
		if d := end.Sub(t.At); d > 0 {
			out[t.To] += d
		}
	}
	return out, nil
}

// sessionEnds returns the time of the last recorded event per session.
func (s *Store) sessionEnds() (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT session_id, MAX(at_ns) FROM (
			SELECT session_id, at_ns FROM transitions
			UNION ALL
			SELECT session_id, at_ns FROM requests
		) GROUP BY session_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var atNs int64
		if err := rows.Scan(&id, &atNs); err != nil {
			return nil, err
		}
		out[id] = time.Unix(0, atNs)
	}
	return out, rows.Err()
}

// Compile-time interface satisfaction check.
var _ log.Logger = (*Store)(nil)
