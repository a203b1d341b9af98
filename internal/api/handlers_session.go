package api

import (
	"net/http"

	"hubgate/internal/application"
	"hubgate/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string          `json:"token"`
	User  domain.AuthUser `json:"user"`
	Mode  domain.Mode     `json:"mode"`
}

func newSessionResponse(session application.Session) sessionResponse {
	return sessionResponse{Token: session.ID, User: session.User, Mode: session.Mode}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// A token already on the request names the session this login replaces.
	session, err := s.sessions.Login(r.Context(), req.Username, req.Password, bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), sessionFrom(r.Context()).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	mode, ok := domain.ParseMode(req.Mode)
	if !ok {
		s.writeError(w, r, domain.NewError(domain.KindInvalidInput, "Choose home or cloud mode."))
		return
	}

	session, err := s.sessions.SetMode(r.Context(), sessionFrom(r.Context()).ID, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

type passwordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.sessions.ChangePassword(r.Context(), sessionFrom(r.Context()).ID,
		req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
