package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/go-chi/chi/v5"
)

func (a *api) handleTracking(w http.ResponseWriter, r *http.Request) {
	uniqueID, err := strconv.ParseInt(chi.URLParam(r, "unique_id"), 10, 64)
	if err != nil {
		respond(w, envelope{Code: 404, Message: "tracking-not-found"})
		return
	}

	send, err := a.sends.TrackByUniqueID(r.Context(), uniqueID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 200, Data: send, Message: "tracking-found"})
}

// handleTrackingList — список без unique_id требует токен; теги ответа
// отличаются от общего Unauthorized.
func (a *api) handleTrackingList(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		respond(w, envelope{Code: 401, Message: "authentication-required-for-list"})
		return
	}
	user, err := a.tokens.Decode(parts[1], clientIP(r))
	if err != nil || user == nil {
		respond(w, envelope{Code: 401, Message: "invalid-token"})
		return
	}

	sends, err := a.sends.ListForUser(r.Context(), user)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if sends == nil {
		sends = []*models.Send{}
	}
	respond(w, envelope{Code: 200, Data: sends, Message: "sends-retrieved"})
}

func (a *api) handleTrackingAuth(w http.ResponseWriter, r *http.Request) {
	uniqueID, err := strconv.ParseInt(chi.URLParam(r, "unique_id"), 10, 64)
	if err != nil {
		respond(w, envelope{Code: 404, Message: "tracking-not-found"})
		return
	}

	send, err := a.sends.TrackByUniqueIDAuth(r.Context(), authUserFrom(r.Context()), uniqueID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 200, Data: send, Message: "tracking-found"})
}
