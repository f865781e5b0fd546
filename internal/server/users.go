package server

import (
	"errors"
	"net/http"

	"findit/internal/app"
	"findit/internal/security"
	"findit/pkg/domain"
)

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func newUserView(u domain.User) userView {
	return userView{ID: u.ID, FullName: u.FullName, Email: u.Email, IsAdmin: u.IsAdmin}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, security.EventSignUp, security.OutcomeRateLimited)
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, errInvalidJSON)
		return
	}
	user, err := s.app.SignUp(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrEmailExists) {
			s.audit(r, security.EventSignUp, security.OutcomeFail, "reason", "email_exists")
		}
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventSignUp, "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User registered successfully",
		"user":    newUserView(user),
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signinLimiter, "too many signin attempts") {
		s.audit(r, security.EventSignIn, security.OutcomeRateLimited)
		return
	}
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, r, errInvalidJSON)
		return
	}
	user, err := s.app.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			s.audit(r, security.EventSignIn, security.OutcomeFail, "reason", "invalid_credentials")
		}
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventSignIn, "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    newUserView(user),
	})
}
