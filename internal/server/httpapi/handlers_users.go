package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/access"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type authResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// bind decodes and validates the body into dst, writing the error response
// itself when it fails.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	req, err := NewRequest(r)
	if err != nil {
		writeError(w, err)
		return false
	}
	if err := req.Decode(dst); err != nil {
		writeError(w, err)
		return false
	}
	if err := dst.Validate(); err != nil {
		if fields, ok := fieldErrors(err); ok {
			writeValidation(w, fields)
			return false
		}
		s.logger.Error(r.Context(), "validator returned a non-field error", "error", err)
		writeError(w, common.ErrInternal)
		return false
	}
	return true
}

func principal(r *http.Request) *models.Principal {
	p, _ := access.PrincipalFromContext(r.Context())
	return p
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !s.bind(w, r, &body) {
		return
	}

	u, err := s.users.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"user": u.Public()},
		"user registered successfully and verification email has been sent")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !s.bind(w, r, &body) {
		return
	}

	u, pair, err := s.users.Login(r.Context(), body.identifier(), body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.cookies.set(w, pair)
	writeOK(w, http.StatusOK, authResponse{User: u.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user logged in successfully")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context(), principal(r).UserID); err != nil {
		writeError(w, err)
		return
	}
	s.cookies.clear(w)
	writeOK(w, http.StatusOK, nil, "user logged out")
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.CurrentUser(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, u.Public(), "current user fetched successfully")
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, common.ErrTokenInvalidOrExpired)
		return
	}

	if _, err := s.users.VerifyEmail(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]bool{"isEmailVerified": true}, "email is verified")
}

func (s *Server) resendEmailVerification(w http.ResponseWriter, r *http.Request) {
	if err := s.users.ResendEmailVerification(r.Context(), principal(r).UserID); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "verification email has been sent")
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	req, err := NewRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	u, pair, err := s.users.RefreshToken(r.Context(), ExtractRefreshToken(req))
	if err != nil {
		writeError(w, err)
		return
	}

	s.cookies.set(w, pair)
	writeOK(w, http.StatusOK, authResponse{User: u.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"access token refreshed")
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if !s.bind(w, r, &body) {
		return
	}

	if err := s.users.ForgotPassword(r.Context(), body.Email); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "if the account exists, a password reset link has been sent")
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !s.bind(w, r, &body) {
		return
	}

	if err := s.users.ResetPassword(r.Context(), chi.URLParam(r, "token"), body.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "password reset successfully")
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if !s.bind(w, r, &body) {
		return
	}

	if err := s.users.ChangePassword(r.Context(), principal(r).UserID, body.OldPassword, body.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "password changed successfully")
}
