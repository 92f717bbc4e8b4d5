package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"riftcal/internal/model"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists Session state.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (model.Session, error)
	Save(ctx context.Context, s model.Session) (model.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Session, error)
	AddCancelledDate(ctx context.Context, id string, date time.Time) error
	RemoveCancelledDate(ctx context.Context, id string, date time.Time) error
}

// SQLStore implements SessionStore on database/sql.
type SQLStore struct {
	db      SQLDB
	dialect Dialect
}

var _ SessionStore = (*SQLStore)(nil)

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db SQLDB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

const sessionColumns = "id, name, team_id, location, start_date, end_date, start_time, end_time, days_of_week, cadence"

// GetByID retrieves a Session and its cancelled dates.
// PRE: id is non-empty
// POST: Returns the session or ErrSessionNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+sessionColumns+" FROM session WHERE id = ?"), id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return model.Session{}, err
	}

	cancelled, err := s.cancelledDates(ctx, []string{id})
	if err != nil {
		return model.Session{}, err
	}
	sess.CancelledDates = cancelled[id]
	return sess, nil
}

// Save inserts or updates a Session, replacing its cancelled dates.
// A session without ID is assigned a new UUID.
// PRE: session has been validated
// POST: session row and cancelled dates are persisted; the stored value is returned
func (s *SQLStore) Save(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Cadence == "" {
		sess.Cadence = model.CadenceNone
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO session (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, team_id=excluded.team_id, location=excluded.location,
			start_date=excluded.start_date, end_date=excluded.end_date,
			start_time=excluded.start_time, end_time=excluded.end_time,
			days_of_week=excluded.days_of_week, cadence=excluded.cadence`),
		sess.ID, sess.Name, sess.TeamID, sess.Location,
		formatDate(sess.StartDate), formatDate(sess.EndDate),
		sess.StartTime, sess.EndTime,
		joinDays(sess.DaysOfWeek), string(sess.Cadence),
	)
	if err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM session_cancelled_date WHERE session_id = ?"), sess.ID); err != nil {
		return model.Session{}, fmt.Errorf("clear cancelled dates: %w", err)
	}
	seen := make(map[string]bool, len(sess.CancelledDates))
	for _, d := range sess.CancelledDates {
		key := formatDate(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := tx.ExecContext(ctx, s.q("INSERT INTO session_cancelled_date (session_id, cancelled_date) VALUES (?, ?)"), sess.ID, key); err != nil {
			return model.Session{}, fmt.Errorf("save cancelled date: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, err
	}
	return s.GetByID(ctx, sess.ID)
}

// Delete removes a Session and its cancelled dates.
// PRE: id is non-empty
// POST: no rows reference id; ErrSessionNotFound if nothing was deleted
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM session_cancelled_date WHERE session_id = ?"), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.q("DELETE FROM session WHERE id = ?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return tx.Commit()
}

// List retrieves all Sessions ordered by start date then name.
func (s *SQLStore) List(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM session ORDER BY start_date, name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	cancelled, err := s.cancelledDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].CancelledDates = cancelled[sessions[i].ID]
	}
	return sessions, nil
}

// AddCancelledDate excludes one calendar date from a session. Adding an
// already cancelled date is a no-op.
// PRE: id refers to an existing session
// POST: date is in the session's cancelled dates
func (s *SQLStore) AddCancelledDate(ctx context.Context, id string, date time.Time) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO session_cancelled_date (session_id, cancelled_date) VALUES (?, ?) ON CONFLICT(session_id, cancelled_date) DO NOTHING"),
		id, formatDate(date),
	)
	return err
}

// RemoveCancelledDate restores a previously cancelled date.
// PRE: id refers to an existing session
// POST: date is no longer cancelled
func (s *SQLStore) RemoveCancelledDate(ctx context.Context, id string, date time.Time) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		s.q("DELETE FROM session_cancelled_date WHERE session_id = ? AND cancelled_date = ?"),
		id, formatDate(date),
	)
	return err
}

func (s *SQLStore) exists(ctx context.Context, id string) error {
	var found string
	err := s.db.QueryRowContext(ctx, s.q("SELECT id FROM session WHERE id = ?"), id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return err
}

// cancelledDates loads cancelled dates for ids, ascending per session.
func (s *SQLStore) cancelledDates(ctx context.Context, ids []string) (map[string][]time.Time, error) {
	out := make(map[string][]time.Time, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT session_id, cancelled_date FROM session_cancelled_date WHERE session_id IN ("+placeholders+") ORDER BY session_id, cancelled_date"),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("session %s: bad cancelled date %q: %w", id, raw, err)
		}
		out[id] = append(out[id], d)
	}
	return out, rows.Err()
}

func (s *SQLStore) q(query string) string {
	return rebind(s.dialect, query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var (
		sess               model.Session
		startDate, endDate string
		days, cadence      string
	)
	err := row.Scan(&sess.ID, &sess.Name, &sess.TeamID, &sess.Location,
		&startDate, &endDate, &sess.StartTime, &sess.EndTime, &days, &cadence)
	if err != nil {
		return model.Session{}, err
	}
	if sess.StartDate, err = model.ParseDate(startDate); err != nil {
		return model.Session{}, fmt.Errorf("session %s: bad start_date %q: %w", sess.ID, startDate, err)
	}
	if sess.EndDate, err = model.ParseDate(endDate); err != nil {
		return model.Session{}, fmt.Errorf("session %s: bad end_date %q: %w", sess.ID, endDate, err)
	}
	sess.DaysOfWeek = splitDays(days)
	sess.Cadence = model.Cadence(cadence)
	return sess, nil
}

func formatDate(t time.Time) string {
	return model.DateOf(t).Format(model.DateLayout)
}

func joinDays(days []string) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		if d = strings.TrimSpace(d); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, ",")
}

func splitDays(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}
