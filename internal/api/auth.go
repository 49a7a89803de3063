package api

import (
	"errors"
	"net/http"

	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess identity.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Email
	}

	profile, err := s.tracker.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, r, "signing up", err)
		return
	}
	sess, err := s.identity.NewSession(r.Context(), profile.ID)
	if err != nil {
		s.writeServiceError(w, r, "creating session", err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: sess.Token, User: profile})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decode(w, r, &req) {
		return
	}
	sess, acct, err := s.identity.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, "signing in", err)
		return
	}
	profile, err := s.tracker.GetProfile(r.Context(), tracker.Subject(acct), acct.UID)
	if err != nil {
		s.writeServiceError(w, r, "loading profile", err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, User: profile})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		s.identity.SignOut(r.Context(), token)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sub := currentUser(r)
	if !sub.Authenticated() {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	profile, err := s.tracker.GetProfile(r.Context(), sub, sub.UserID)
	if err != nil {
		s.writeServiceError(w, r, "loading profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
