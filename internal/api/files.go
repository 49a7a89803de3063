package api

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

const maxUploadSize = 25 << 20

// handleUpload accepts a multipart "file" part and attaches it to the
// task or bug in the URL.
func (s *Server) handleUpload(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		a, err := s.tracker.Upload(r.Context(), currentUser(r), tracker.UploadInput{
			Entity:   entity,
			EntityID: chi.URLParam(r, "id"),
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Body:     file,
		})
		s.writeUpload(w, r, a, err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	a, path, err := s.tracker.OpenAttachment(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, "opening attachment", err)
		return
	}
	if a.MimeType != "" {
		w.Header().Set("Content-Type", a.MimeType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	http.ServeFile(w, r, path)
}

func (s *Server) writeUpload(w http.ResponseWriter, r *http.Request, a any, err error) {
	var auditErr *mutation.AuditError
	switch {
	case errors.As(err, &auditErr):
		w.Header().Set(AuditErrorHeader, auditErr.Error())
	case err != nil:
		s.writeServiceError(w, r, "uploading attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
