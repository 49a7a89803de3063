package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/audit"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetProfile(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "getting profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.tracker.ListProfiles(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, "listing users", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(profiles))
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		UserID:   q.Get("userId"),
		Limit:    100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	entries, err := s.tracker.AuditLog(r.Context(), currentUser(r), f)
	if err != nil {
		s.writeServiceError(w, r, "listing audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

type callableRequest struct {
	Data admin.Request `json:"data"`
}

type callableResult struct {
	Result *admin.Response `json:"result,omitempty"`
	Error  *admin.Error    `json:"error,omitempty"`
}

var callableStatus = map[admin.Kind]int{
	admin.Unauthenticated:  http.StatusUnauthorized,
	admin.PermissionDenied: http.StatusForbidden,
	admin.InvalidArgument:  http.StatusBadRequest,
	admin.AlreadyExists:    http.StatusConflict,
	admin.Internal:         http.StatusInternalServerError,
}

// handleUpdateUserCallable serves the updateUser function. Requests use
// the {"data": ...} envelope; responses carry either "result" or a
// typed "error".
func (s *Server) handleUpdateUserCallable(w http.ResponseWriter, r *http.Request) {
	if !currentUser(r).Authenticated() {
		writeJSON(w, http.StatusUnauthorized, callableResult{
			Error: &admin.Error{Kind: admin.Unauthenticated, Message: "sign in required"},
		})
		return
	}
	var req callableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, callableResult{
			Error: &admin.Error{Kind: admin.InvalidArgument, Message: "invalid JSON"},
		})
		return
	}

	resp, err := s.admin.UpdateUser(r.Context(), currentUser(r), req.Data)
	if err != nil {
		var aerr *admin.Error
		if !errors.As(err, &aerr) {
			s.logger.Error().Err(err).Msg("error updating user")
			aerr = &admin.Error{Kind: admin.Internal, Message: "internal error"}
		}
		status, ok := callableStatus[aerr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, callableResult{Error: aerr})
		return
	}
	writeJSON(w, http.StatusOK, callableResult{Result: &resp})
}
