package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type broadcastBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (a *api) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var body broadcastBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Message == "" {
		respond(w, envelope{Code: 400, Text: "message-required"})
		return
	}
	if body.Type == "" {
		body.Type = "info"
	}

	a.notifier.ToAll("notification", map[string]any{
		"message":   body.Message,
		"type":      body.Type,
		"timestamp": time.Now().Format(time.RFC3339),
		"from":      "system",
	})
	respond(w, envelope{Code: 200, Text: "notification-sent", Data: map[string]any{
		"message": body.Message,
		"type":    body.Type,
	}})
}

type privateBody struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (a *api) handlePrivate(w http.ResponseWriter, r *http.Request) {
	var body privateBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Email == "" || body.Message == "" {
		respond(w, envelope{Code: 400, Text: "email-and-message-required"})
		return
	}
	if body.Type == "" {
		body.Type = "info"
	}

	delivered := a.notifier.ToUser(body.Email, "private-notification", map[string]any{
		"message":   body.Message,
		"type":      body.Type,
		"timestamp": time.Now().Format(time.RFC3339),
		"from":      "system",
	})

	text := "private-message-sent"
	if !delivered {
		text = "user-not-connected"
	}
	respond(w, envelope{Code: 200, Text: text, Data: map[string]any{
		"email":     body.Email,
		"message":   body.Message,
		"delivered": delivered,
	}})
}

type systemStatusBody struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

func (a *api) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var body systemStatusBody
	if !decodeBody(w, r, &body) {
		return
	}

	a.notifier.ToAll("system-status-update", map[string]any{
		"message":   "system-status-changed",
		"status":    body.Status,
		"details":   body.Details,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	respond(w, envelope{Code: 200, Text: "system-status-broadcasted", Data: map[string]any{
		"status":  body.Status,
		"details": body.Details,
	}})
}

func (a *api) handleConnectedUsers(w http.ResponseWriter, _ *http.Request) {
	users := a.notifier.ConnectedUsers()
	respond(w, envelope{Code: 200, Text: "connected-users-retrieved", Data: map[string]any{
		"count": len(users),
		"users": users,
	}})
}

func (a *api) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	respond(w, envelope{Code: 200, Text: "user-status-retrieved", Data: map[string]any{
		"email":     email,
		"connected": a.notifier.IsUserConnected(email),
	}})
}
