package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/go-chi/chi/v5"
)

func (a *api) handleCreateSend(w http.ResponseWriter, r *http.Request) {
	var body models.SendCreateInput
	if !decodeBody(w, r, &body) {
		return
	}

	send, err := a.sends.CreateSend(r.Context(), authUserFrom(r.Context()), body)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 200, Text: "send-created", Data: send})
}

func (a *api) handleUpdateSend(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		respond(w, envelope{Code: 400, Text: "invalid-send-id"})
		return
	}

	var body models.SendUpdateInput
	if !decodeBody(w, r, &body) {
		return
	}

	send, err := a.sends.UpdateSend(r.Context(), authUserFrom(r.Context()), id, body)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 200, Text: "send-updated", Data: send})
}

type sendsFilteredBody struct {
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Filters models.SendFilter `json:"filters"`
}

func (a *api) handleGetSendsFiltered(w http.ResponseWriter, r *http.Request) {
	var body sendsFilteredBody
	if !decodeBody(w, r, &body) {
		return
	}

	rows, pag, err := a.sends.ListFiltered(r.Context(), authUserFrom(r.Context()), body.Filters, body.Page, body.Limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if rows == nil {
		rows = []*models.Send{}
	}
	respond(w, envelope{Code: 200, Data: rows, Pagination: &pag, Message: "sends-filtered"})
}
