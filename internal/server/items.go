package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"findit/internal/app"
	"findit/internal/security"
	"findit/pkg/storage"
)

// multipart parts above this size spill to temp files
const maxMultipartMemory = 8 << 20

type claimRequest struct {
	ConcernID json.RawMessage `json:"concern_id"`
	Email     string          `json:"email"`
}

// concernIDString accepts concern_id as a JSON number or string.
func (c claimRequest) concernIDString() string {
	var s string
	if err := json.Unmarshal(c.ConcernID, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(c.ConcernID))
}

func (s *Server) handleRaiseConcern(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := app.RaiseConcernInput{
		Email:       r.FormValue("email"),
		ItemName:    r.FormValue("item_name"),
		Category:    r.FormValue("category"),
		Date:        r.FormValue("date"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		ItemType:    r.FormValue("itemType"),
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		in.Image = file
		in.ImageName = header.Filename
		in.ImageSize = header.Size
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return
	}

	concern, err := s.app.RaiseConcern(r.Context(), in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Concern raised successfully",
		"concern": concern,
	})
}

func (s *Server) handleMyItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListByReporter(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListAllItems(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleLostItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.app.ListLost(r.Context(), app.LostQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		SortBy:   q.Get("sortBy"),
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFoundItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListFound(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var fields app.ConcernFields
	if err := decodeJSON(r, &fields); err != nil {
		writeAppError(w, r, errInvalidJSON)
		return
	}
	if err := s.app.UpdateOwnConcern(r.Context(), r.PathValue("id"), fields); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item updated successfully")
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteOwnConcern(r.Context(), r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item deleted successfully")
}

func (s *Server) handleClaimItem(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.claimLimiter, "too many claim attempts") {
		s.audit(r, security.EventClaimSubmit, security.OutcomeRateLimited)
		return
	}
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, errInvalidJSON)
		return
	}
	claim, err := s.app.SubmitClaim(r.Context(), req.Email, req.concernIDString())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Item claimed successfully",
		"claim":   claim,
	})
}

func (s *Server) handleClaimedItems(w http.ResponseWriter, r *http.Request) {
	ids, err := s.app.ListClaimedItems(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ids})
}

func (s *Server) handleHelpers(w http.ResponseWriter, r *http.Request) {
	helpers, err := s.app.ListHelpers(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"helpers": helpers})
}

func (s *Server) handleClaimers(w http.ResponseWriter, r *http.Request) {
	view, err := s.app.ListClaimers(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleImage serves a stored image from disk, or redirects to a presigned
// URL when images live in an object store.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name, err := storage.ValidName(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch images := s.images.(type) {
	case storage.Presigner:
		url, err := images.PresignGet(r.Context(), name, s.presignExpiry)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	case storage.Opener:
		file, modTime, err := images.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeAppError(w, r, err)
			return
		}
		defer file.Close()
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeContent(w, r, name, modTime, file)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}
