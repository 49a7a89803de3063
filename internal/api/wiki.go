package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type wikiRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleListWikiPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.tracker.ListWikiPages(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, "listing wiki pages", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(pages))
}

func (s *Server) handleCreateWikiPage(w http.ResponseWriter, r *http.Request) {
	var req wikiRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.tracker.CreateWikiPage(r.Context(), currentUser(r), req.Title, req.Content)
	if err != nil {
		s.writeServiceError(w, r, "creating wiki page", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetWikiPage(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetWikiPage(r.Context(), currentUser(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeServiceError(w, r, "getting wiki page", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleEditWikiPage(w http.ResponseWriter, r *http.Request) {
	var req wikiRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.tracker.EditWikiPage(r.Context(), currentUser(r), chi.URLParam(r, "slug"), req.Title, req.Content)
	s.writeMutation(w, r, "editing wiki page", p, err)
}

func (s *Server) handleWikiHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := s.tracker.WikiHistory(r.Context(), currentUser(r), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeServiceError(w, r, "loading wiki history", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(versions))
}
