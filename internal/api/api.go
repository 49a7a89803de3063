// Package api is the JSON HTTP surface: REST under /api, the
// updateUser callable under /functions, and a websocket comment stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

// AuditErrorHeader carries the audit failure message on a response
// whose record write succeeded.
const AuditErrorHeader = "X-Audit-Error"

type Server struct {
	tracker  *tracker.Service
	identity *identity.Service
	admin    *admin.Service
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

type Deps struct {
	Tracker  *tracker.Service
	Identity *identity.Service
	Admin    *admin.Service
	Logger   zerolog.Logger
}

func New(d Deps) *Server {
	return &Server{
		tracker:  d.Tracker,
		identity: d.Identity,
		admin:    d.Admin,
		logger:   d.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.authMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/functions/updateUser", s.handleUpdateUserCallable)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/signout", s.handleSignOut)
		r.Get("/auth/me", s.handleMe)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Get("/projects", s.handleListProjects)
			r.Post("/projects", s.handleCreateProject)
			r.Get("/projects/{id}", s.handleGetProject)
			r.Patch("/projects/{id}", s.handleUpdateProject)
			r.Delete("/projects/{id}", s.handleDeleteProject)

			r.Get("/projects/{id}/members", s.handleListMembers)
			r.Post("/projects/{id}/members", s.handleAddMember)
			r.Delete("/projects/{id}/members/{userID}", s.handleRemoveMember)

			r.Get("/projects/{id}/tasks", s.handleListTasks)
			r.Post("/projects/{id}/tasks", s.handleCreateTask)
			r.Get("/projects/{id}/bugs", s.handleListBugs)
			r.Post("/projects/{id}/bugs", s.handleCreateBug)
			r.Get("/projects/{id}/sprints", s.handleListSprints)
			r.Post("/projects/{id}/sprints", s.handleCreateSprint)
			r.Get("/projects/{id}/timelogs", s.handleListProjectTimeLogs)
			r.Get("/projects/{id}/timesheet", s.handleTimesheet)

			r.Get("/tasks/{id}", s.handleGetTask)
			r.Patch("/tasks/{id}", s.handleUpdateTask)
			r.Delete("/tasks/{id}", s.handleDeleteTask)
			r.Get("/tasks/{id}/progress", s.handleSubtaskProgress)
			r.Get("/tasks/{id}/comments", s.handleListComments)
			r.Post("/tasks/{id}/comments", s.handleAddComment)
			r.Get("/tasks/{id}/comments/stream", s.handleCommentStream)
			r.Post("/tasks/{id}/attachments", s.handleUpload(tracker.AttachTask))

			r.Get("/bugs/{id}", s.handleGetBug)
			r.Patch("/bugs/{id}", s.handleUpdateBug)
			r.Delete("/bugs/{id}", s.handleDeleteBug)
			r.Post("/bugs/{id}/attachments", s.handleUpload(tracker.AttachBug))

			r.Get("/sprints/{id}", s.handleGetSprint)
			r.Patch("/sprints/{id}", s.handleUpdateSprint)
			r.Get("/sprints/{id}/burndown", s.handleBurndown)

			r.Post("/timelogs", s.handleLogTime)
			r.Get("/timelogs", s.handleListUserTimeLogs)

			r.Get("/wiki", s.handleListWikiPages)
			r.Post("/wiki", s.handleCreateWikiPage)
			r.Get("/wiki/{slug}", s.handleGetWikiPage)
			r.Put("/wiki/{slug}", s.handleEditWikiPage)
			r.Get("/wiki/{slug}/history", s.handleWikiHistory)

			r.Get("/attachments/{id}", s.handleDownload)

			r.Get("/users/{id}", s.handleGetProfile)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/users", s.handleListProfiles)
				r.Get("/audit", s.handleAuditLog)
			})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// statusOf maps service errors to HTTP statuses. Zero means unexpected.
func statusOf(err error) int {
	switch {
	case errors.Is(err, tracker.ErrForbidden), errors.Is(err, docstore.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, tracker.ErrInvalid),
		errors.Is(err, domain.ErrInvalidChange),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, mutation.ErrNoChanges),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, docstore.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, identity.ErrNoAccount):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrAlreadyExists), errors.Is(err, identity.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidSession):
		return http.StatusUnauthorized
	}
	return 0
}

// writeServiceError writes err as a JSON error. Unexpected errors are
// logged and hidden behind "internal error".
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if status := statusOf(err); status != 0 {
		writeError(w, status, err.Error())
		return
	}
	s.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("error " + what)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// writeMutation writes the result of an executor-backed update. An
// audit failure still returns the committed record, flagged by header.
func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, what string, v any, err error) {
	var auditErr *mutation.AuditError
	if errors.As(err, &auditErr) {
		s.logger.Warn().Err(err).Str("diagnostic", "audit append failed").Msg(what)
		w.Header().Set(AuditErrorHeader, auditErr.Error())
		writeJSON(w, http.StatusOK, v)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, what, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// emptyIfNil keeps list responses as [] rather than null.
func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
