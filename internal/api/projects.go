package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.tracker.ListProjects(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, "listing projects", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(projects))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in tracker.ProjectInput
	if !decode(w, r, &in) {
		return
	}
	p, err := s.tracker.CreateProject(r.Context(), currentUser(r), in)
	if err != nil {
		s.writeServiceError(w, r, "creating project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleGetProject accepts either the project id or its slug.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetProject(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "getting project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var cs ChangeSet
	if !decode(w, r, &cs) {
		return
	}
	changes, err := parseChanges(cs, domain.ParseProjectChange)
	if err != nil {
		s.writeServiceError(w, r, "parsing changes", err)
		return
	}
	p, err := s.tracker.UpdateProject(r.Context(), currentUser(r), chi.URLParam(r, "id"), changes...)
	s.writeMutation(w, r, "updating project", p, err)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteProject(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, "deleting project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMemberRequest struct {
	Email string             `json:"email"`
	Role  domain.ProjectRole `json:"role"`
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.tracker.ListMembers(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "listing members", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(members))
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	m, err := s.tracker.AddMember(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Email, req.Role)
	if err != nil {
		s.writeServiceError(w, r, "adding member", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.tracker.RemoveMember(r.Context(), currentUser(r), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, "removing member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
