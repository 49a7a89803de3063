package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

func (s *Server) handleListBugs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := tracker.BugFilter{
		Status:     domain.BugStatus(q.Get("status")),
		AssigneeID: q.Get("assigneeId"),
	}
	bugs, err := s.tracker.ListBugs(r.Context(), currentUser(r), chi.URLParam(r, "id"), f)
	if err != nil {
		s.writeServiceError(w, r, "listing bugs", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(bugs))
}

func (s *Server) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	var in tracker.BugInput
	if !decode(w, r, &in) {
		return
	}
	b, err := s.tracker.CreateBug(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, "creating bug", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBug(w http.ResponseWriter, r *http.Request) {
	b, err := s.tracker.GetBug(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "getting bug", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBug(w http.ResponseWriter, r *http.Request) {
	var cs ChangeSet
	if !decode(w, r, &cs) {
		return
	}
	changes, err := parseChanges(cs, domain.ParseBugChange)
	if err != nil {
		s.writeServiceError(w, r, "parsing changes", err)
		return
	}
	b, err := s.tracker.UpdateBug(r.Context(), currentUser(r), chi.URLParam(r, "id"), changes...)
	s.writeMutation(w, r, "updating bug", b, err)
}

func (s *Server) handleDeleteBug(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteBug(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, "deleting bug", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
