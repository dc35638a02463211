package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BearBump/SendBox/internal/models"
)

func (a *api) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	list, err := a.routes.ListWithVehicles(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Route{}
	}
	respond(w, envelope{Code: 200, Data: list, Message: "routes-with-vehicles"})
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, pag, err := a.users.ListUsers(r.Context(), page, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []*models.User{}
	}
	respond(w, envelope{Code: 200, Data: list, Pagination: &pag, Message: "users-retrieved"})
}
