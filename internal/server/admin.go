package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"findit/internal/app"
	"findit/internal/security"
)

// adminHandler serves a privileged route once adminOnly has let the caller
// through. The core re-checks userID on every operation; the returned error
// is written by adminOnly.
type adminHandler func(w http.ResponseWriter, r *http.Request, userID string) error

type statusRequest struct {
	Status string `json:"status"`
}

type decisionResponse struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	EmailSent  bool   `json:"emailSent"`
	EmailError string `json:"emailError,omitempty"`
}

// adminUserID reads the caller id from ?user_id=, falling back to the
// X-User-Id header.
func adminUserID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func (s *Server) adminOnly(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := adminUserID(r)
		// the guard runs before the body is read
		if _, err := s.app.RequireAdmin(r.Context(), userID); err != nil {
			if app.IsGuardFailure(err) {
				s.audit(r, security.EventAdminAuthorize, security.OutcomeFail, "user_id", userID, "reason", guardReason(err))
			}
			writeAppError(w, r, err)
			return
		}
		s.audit(r, security.EventAdminAuthorize, "success", "user_id", userID)
		if err := next(w, r, userID); err != nil {
			if app.IsGuardFailure(err) {
				// admin flag revoked between the two checks
				s.audit(r, security.EventAdminAuthorize, security.OutcomeFail, "user_id", userID, "reason", guardReason(err))
			}
			writeAppError(w, r, err)
		}
	}
}

func guardReason(err error) string {
	switch {
	case errors.Is(err, app.ErrMissingUserID):
		return "missing_user_id"
	case errors.Is(err, app.ErrInvalidUserID):
		return "invalid_user_id"
	case errors.Is(err, app.ErrUserNotFound):
		return "unknown_user"
	default:
		return "forbidden"
	}
}

func (s *Server) handleDecideConcern(w http.ResponseWriter, r *http.Request, userID string) error {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		return errInvalidJSON
	}
	res, err := s.app.DecideConcern(r.Context(), userID, r.PathValue("id"), req.Status)
	if err != nil {
		return err
	}
	resp := decisionResponse{Status: string(res.Status), EmailSent: res.Notified}
	if res.EmailError != nil {
		resp.Message = fmt.Sprintf("Concern marked as %s, but email failed.", res.Status)
		resp.EmailError = "notification could not be delivered"
	} else {
		resp.Message = fmt.Sprintf("Concern marked as %s and email sent.", res.Status)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) handleDecideClaim(w http.ResponseWriter, r *http.Request, userID string) error {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		return errInvalidJSON
	}
	res, err := s.app.DecideClaim(r.Context(), userID, r.PathValue("id"), req.Status)
	if err != nil {
		return err
	}
	resp := decisionResponse{Status: string(res.Status), EmailSent: res.EmailError == nil}
	if res.EmailError != nil {
		resp.Message = fmt.Sprintf("Claim marked as %s, but email failed.", res.Status)
		resp.EmailError = "notification could not be delivered"
	} else {
		resp.Message = fmt.Sprintf("Claim marked as %s and emails sent.", res.Status)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, userID string) error {
	stats, err := s.app.DashboardStats(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

func (s *Server) handleAdminConcerns(w http.ResponseWriter, r *http.Request, userID string) error {
	items, err := s.app.ListConcerns(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"concerns": items})
	return nil
}

func (s *Server) handleAdminPendingConcerns(w http.ResponseWriter, r *http.Request, userID string) error {
	items, err := s.app.ListPendingConcerns(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"concerns": items})
	return nil
}

func (s *Server) handleAdminItems(w http.ResponseWriter, r *http.Request, userID string) error {
	items, err := s.app.ListItems(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
	return nil
}

func (s *Server) handleAdminEditItem(w http.ResponseWriter, r *http.Request, userID string) error {
	var fields app.ConcernFields
	if err := decodeJSON(r, &fields); err != nil {
		return errInvalidJSON
	}
	if err := s.app.EditConcern(r.Context(), userID, r.PathValue("id"), fields); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "Item updated successfully")
	return nil
}

func (s *Server) handleAdminDeleteItem(w http.ResponseWriter, r *http.Request, userID string) error {
	if err := s.app.DeleteConcern(r.Context(), userID, r.PathValue("id")); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "Item deleted successfully")
	return nil
}

func (s *Server) handleAdminClaims(w http.ResponseWriter, r *http.Request, userID string) error {
	claims, err := s.app.ListPendingClaims(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
	return nil
}
