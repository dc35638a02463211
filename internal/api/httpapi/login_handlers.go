package httpapi

import (
	"net/http"

	"github.com/BearBump/SendBox/internal/services/users"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeBody(w, r, &body) {
		return
	}

	token, user, err := a.users.Login(r.Context(), body.Email, body.Password, clientIP(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 200, Token: token, User: user, Text: "session-started"})
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body users.RegisterInput
	if !decodeBody(w, r, &body) {
		return
	}

	user, err := a.users.Register(r.Context(), body)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 201, Text: "user-created", Data: user})
}
