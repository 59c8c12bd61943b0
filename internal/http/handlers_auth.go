package http

import (
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

type userResponse struct {
	User core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	user, err := s.svc.Accounts.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}
	token, err := s.svc.Accounts.IssueToken(user)
	if err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(authResponse{Token: token, User: user}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	token, user, err := s.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, applog.OpLogin, err)
		return
	}
	NewJSONResponse().JSON(authResponse{Token: token, User: user}).Write(w)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Accounts.Profile(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(userResponse{User: user}).Write(w)
}
