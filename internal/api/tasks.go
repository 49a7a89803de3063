package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := tracker.TaskFilter{
		SprintID:   q.Get("sprintId"),
		Status:     domain.TaskStatus(q.Get("status")),
		AssigneeID: q.Get("assigneeId"),
		ParentID:   q.Get("parentId"),
	}
	tasks, err := s.tracker.ListTasks(r.Context(), currentUser(r), chi.URLParam(r, "id"), f)
	if err != nil {
		s.writeServiceError(w, r, "listing tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in tracker.TaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := s.tracker.CreateTask(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, r, "creating task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tracker.GetTask(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "getting task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var cs ChangeSet
	if !decode(w, r, &cs) {
		return
	}
	changes, err := parseChanges(cs, domain.ParseTaskChange)
	if err != nil {
		s.writeServiceError(w, r, "parsing changes", err)
		return
	}
	t, err := s.tracker.UpdateTask(r.Context(), currentUser(r), chi.URLParam(r, "id"), changes...)
	s.writeMutation(w, r, "updating task", t, err)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteTask(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, "deleting task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubtaskProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.SubtaskProgress(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "computing progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.tracker.ListComments(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "listing comments", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(comments))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.tracker.AddComment(r.Context(), currentUser(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.writeServiceError(w, r, "adding comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
