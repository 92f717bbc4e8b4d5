package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appLog "riftcal/internal/log"
	"riftcal/internal/model"
	"riftcal/internal/schedule"
	"riftcal/internal/store"
)

const maxRequestBody = 1 << 20

// errBadRequest marks client input errors that are not schedule
// validation failures.
var errBadRequest = errors.New("bad request")

// sessionRequest is the JSON body of POST/PUT /api/sessions.
// A nil CancelledDates means the field was absent.
type sessionRequest struct {
	Name           string    `json:"name"`
	TeamID         string    `json:"team_id"`
	Location       string    `json:"location"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	DaysOfWeek     []string  `json:"days_of_week"`
	Repeat         string    `json:"repeat"`
	CancelledDates *[]string `json:"cancelled_dates"`
}

// sessionDTO is the JSON view of a stored session.
type sessionDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	TeamID         string   `json:"team_id"`
	Location       string   `json:"location"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	DaysOfWeek     []string `json:"days_of_week"`
	DaysDisplay    string   `json:"days_display"`
	Repeat         string   `json:"repeat"`
	RRule          string   `json:"rrule,omitempty"`
	CancelledDates []string `json:"cancelled_dates"`
}

// occurrenceDTO is the JSON view of one occurrence.
type occurrenceDTO struct {
	SessionID   string    `json:"session_id"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Location    string    `json:"location"`
	Date        string    `json:"date"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Display     string    `json:"display"`
}

type occurrencesResponse struct {
	SessionID       string          `json:"session_id"`
	Occurrences     []occurrenceDTO `json:"occurrences"`
	Truncated       bool            `json:"truncated,omitempty"`
	DisplayTimeZone string          `json:"display_timezone"`
}

type cancellationRequest struct {
	Date string `json:"date"`
}

type daysRequest struct {
	Days string `json:"days"`
}

type daysResponse struct {
	Valid   bool     `json:"valid"`
	Days    []string `json:"days"`
	Display string   `json:"display"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) expandConfig() schedule.ExpandConfig {
	loc, err := schedule.ResolveLocation(s.cfg.Timezone)
	if err != nil {
		appLog.Error("invalid display timezone; using default", err, "timezone", s.cfg.Timezone)
		loc, _ = schedule.ResolveLocation("")
	}
	return schedule.ExpandConfig{DisplayLocation: loc, MaxOccurrences: s.cfg.MaxOccurrences}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, "list sessions failed", err)
		return
	}
	out := make([]sessionDTO, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionDTO(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	saved, err := s.store.Save(r.Context(), sess)
	if err != nil {
		s.internalError(w, "save session failed", err)
		return
	}
	appLog.Info("session created", "session_id", saved.ID, "name", saved.Name)
	writeJSON(w, http.StatusCreated, toSessionDTO(saved))
}

// handleUpdateSession replaces a session. Cancelled dates are kept when
// the body omits cancelled_dates.
//
// PUT /api/sessions/{id}
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	sess.ID = existing.ID
	if sess.CancelledDates == nil {
		sess.CancelledDates = existing.CancelledDates
	}
	saved, err := s.store.Save(r.Context(), sess)
	if err != nil {
		s.internalError(w, "save session failed", err)
		return
	}
	appLog.Info("session updated", "session_id", saved.ID)
	writeJSON(w, http.StatusOK, toSessionDTO(saved))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete session failed", err)
		return
	}
	appLog.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleOccurrences returns the full expansion of one session.
//
// GET /api/sessions/{id}/occurrences
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	res := s.planner.Expand(r.Context(), sess)
	writeJSON(w, http.StatusOK, occurrencesResponse{
		SessionID:       sess.ID,
		Occurrences:     toOccurrenceDTOs(res.Occurrences),
		Truncated:       res.Truncated,
		DisplayTimeZone: s.planner.Location().String(),
	})
}

// handleUpcoming returns the next practices starting at or after now.
//
// GET /api/sessions/{id}/upcoming?limit=N
//   - limit: number of practices (default from config, then 5)
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.UpcomingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	res := s.planner.Expand(r.Context(), sess)
	next := schedule.Upcoming(res.Occurrences, s.now(), limit)
	writeJSON(w, http.StatusOK, occurrencesResponse{
		SessionID:       sess.ID,
		Occurrences:     toOccurrenceDTOs(next),
		DisplayTimeZone: s.planner.Location().String(),
	})
}

// handleSessionCalendar serves a session as an ICS subscription.
//
// GET /api/sessions/{id}/calendar.ics
func (s *Server) handleSessionCalendar(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	body := s.planner.Calendar(r.Context(), sess.Name, sess)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.ics"`, sess.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleAddCancellation cancels one practice date.
//
// POST /api/sessions/{id}/cancellations {"date":"2024-01-15"}
func (s *Server) handleAddCancellation(w http.ResponseWriter, r *http.Request) {
	var req cancellationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.AddCancelledDate(r.Context(), id, date); err != nil {
		s.storeError(w, "add cancelled date failed", err)
		return
	}
	s.writeSession(w, r, id)
}

// handleRemoveCancellation restores a cancelled practice date.
//
// DELETE /api/sessions/{id}/cancellations/{date}
func (s *Server) handleRemoveCancellation(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.RemoveCancelledDate(r.Context(), id, date); err != nil {
		s.storeError(w, "remove cancelled date failed", err)
		return
	}
	s.writeSession(w, r, id)
}

// handleValidateDays checks a comma-separated weekday list.
//
// POST /api/days/validate {"days":"Mon, miércoles"}
func (s *Server) handleValidateDays(w http.ResponseWriter, r *http.Request) {
	var req daysRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	days, err := schedule.ParseDaysOfWeek(req.Days)
	if err != nil {
		s.metrics.RecordValidationFailure(validationReason(err))
		writeJSON(w, http.StatusOK, daysResponse{Valid: false, Days: []string{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, daysResponse{
		Valid:   true,
		Days:    schedule.DayKeys(days),
		Display: schedule.FormatDaysOfWeek(days),
	})
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.storeError(w, "load session failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// loadSession fetches the {id} session, writing 404/500 on failure.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	sess, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "load session failed", err)
		return model.Session{}, false
	}
	return sess, true
}

// decodeSession reads and validates a session body, writing 400 on failure.
func (s *Server) decodeSession(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return model.Session{}, false
	}
	sess, err := req.toSession()
	if err == nil {
		err = schedule.ValidateSession(sess)
	}
	if err != nil {
		s.metrics.RecordValidationFailure(validationReason(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Session{}, false
	}
	sess.Cadence, _ = schedule.ParseCadence(string(sess.Cadence))
	return sess, true
}

func (s *Server) storeError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.internalError(w, msg, err)
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	appLog.Error(msg, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (req sessionRequest) toSession() (model.Session, error) {
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", errBadRequest)
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", errBadRequest)
	}
	var cancelled []time.Time
	if req.CancelledDates != nil {
		cancelled = make([]time.Time, 0, len(*req.CancelledDates))
		for _, raw := range *req.CancelledDates {
			d, err := model.ParseDate(strings.TrimSpace(raw))
			if err != nil {
				return model.Session{}, fmt.Errorf("%w: cancelled date %q must be YYYY-MM-DD", errBadRequest, raw)
			}
			cancelled = append(cancelled, d)
		}
	}
	return model.Session{
		Name:           strings.TrimSpace(req.Name),
		TeamID:         strings.TrimSpace(req.TeamID),
		Location:       strings.TrimSpace(req.Location),
		StartDate:      start,
		EndDate:        end,
		StartTime:      strings.TrimSpace(req.StartTime),
		EndTime:        strings.TrimSpace(req.EndTime),
		DaysOfWeek:     req.DaysOfWeek,
		Cadence:        model.Cadence(req.Repeat),
		CancelledDates: cancelled,
	}, nil
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return model.ParseDate(raw)
}

func toSessionDTO(s model.Session) sessionDTO {
	dto := sessionDTO{
		ID:             s.ID,
		Name:           s.Name,
		TeamID:         s.TeamID,
		Location:       s.Location,
		StartDate:      s.StartDate.Format(model.DateLayout),
		EndDate:        s.EndDate.Format(model.DateLayout),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		DaysOfWeek:     s.DaysOfWeek,
		Repeat:         string(s.Cadence),
		CancelledDates: make([]string, 0, len(s.CancelledDates)),
	}
	if dto.DaysOfWeek == nil {
		dto.DaysOfWeek = []string{}
	}
	if days, err := schedule.NormalizeDays(s.DaysOfWeek); err == nil {
		dto.DaysDisplay = schedule.FormatDaysOfWeek(days)
	}
	if rule, err := schedule.RRule(s); err == nil {
		dto.RRule = rule
	}
	for _, d := range s.CancelledDates {
		dto.CancelledDates = append(dto.CancelledDates, d.Format(model.DateLayout))
	}
	return dto
}

func toOccurrenceDTOs(occ []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		out = append(out, occurrenceDTO{
			SessionID:   o.SessionID,
			InstanceKey: o.InstanceKey,
			Summary:     o.Summary,
			Location:    o.Location,
			Date:        o.Date.Format(model.DateLayout),
			Start:       o.Start,
			End:         o.End,
			Display:     schedule.FormatOccurrence(o),
		})
	}
	return out
}

// validationReason maps a validation error to a metrics label.
func validationReason(err error) string {
	switch {
	case errors.Is(err, schedule.ErrInvalidWeekday):
		return "invalid_weekday"
	case errors.Is(err, schedule.ErrEmptyDaysOfWeek), errors.Is(err, schedule.ErrEmptyDayToken):
		return "empty_days"
	case errors.Is(err, schedule.ErrEndBeforeStart):
		return "end_before_start"
	case errors.Is(err, schedule.ErrMissingDates):
		return "missing_dates"
	case errors.Is(err, schedule.ErrInvalidClock), errors.Is(err, schedule.ErrInvalidTimeRange):
		return "invalid_time"
	case errors.Is(err, schedule.ErrInvalidCadence):
		return "invalid_repeat"
	default:
		return "malformed"
	}
}
