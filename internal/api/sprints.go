package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

func (s *Server) handleListSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := s.tracker.ListSprints(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "listing sprints", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(sprints))
}

func (s *Server) handleCreateSprint(w http.ResponseWriter, r *http.Request) {
	var in tracker.SprintInput
	if !decode(w, r, &in) {
		return
	}
	sp, err := s.tracker.CreateSprint(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, "creating sprint", err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) handleGetSprint(w http.ResponseWriter, r *http.Request) {
	sp, err := s.tracker.GetSprint(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "getting sprint", err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleUpdateSprint(w http.ResponseWriter, r *http.Request) {
	var cs ChangeSet
	if !decode(w, r, &cs) {
		return
	}
	changes, err := parseChanges(cs, domain.ParseSprintChange)
	if err != nil {
		s.writeServiceError(w, r, "parsing changes", err)
		return
	}
	sp, err := s.tracker.UpdateSprint(r.Context(), currentUser(r), chi.URLParam(r, "id"), changes...)
	s.writeMutation(w, r, "updating sprint", sp, err)
}

func (s *Server) handleBurndown(w http.ResponseWriter, r *http.Request) {
	chart, err := s.tracker.Burndown(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "computing burndown", err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleLogTime(w http.ResponseWriter, r *http.Request) {
	var in tracker.TimeLogInput
	if !decode(w, r, &in) {
		return
	}
	tl, err := s.tracker.LogTime(r.Context(), currentUser(r), in)
	if err != nil {
		s.writeServiceError(w, r, "logging time", err)
		return
	}
	writeJSON(w, http.StatusCreated, tl)
}

func (s *Server) handleListProjectTimeLogs(w http.ResponseWriter, r *http.Request) {
	s.listTimeLogs(w, r, tracker.TimeLogFilter{
		ProjectID: chi.URLParam(r, "id"),
		UserID:    r.URL.Query().Get("userId"),
	})
}

// handleListUserTimeLogs defaults to the caller's own logs.
func (s *Server) handleListUserTimeLogs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = currentUser(r).UserID
	}
	s.listTimeLogs(w, r, tracker.TimeLogFilter{UserID: userID})
}

func (s *Server) listTimeLogs(w http.ResponseWriter, r *http.Request, f tracker.TimeLogFilter) {
	logs, err := s.tracker.ListTimeLogs(r.Context(), currentUser(r), f)
	if err != nil {
		s.writeServiceError(w, r, "listing time logs", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(logs))
}

func (s *Server) handleTimesheet(w http.ResponseWriter, r *http.Request) {
	rows, err := s.tracker.Timesheet(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "building timesheet", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rows))
}
