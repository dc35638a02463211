package httpapi

import (
	"net/http"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/drivers"
)

func (a *api) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	list, err := a.drivers.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Driver{}
	}
	respond(w, envelope{Code: 200, Data: list, Text: "drivers-retrieved"})
}

func (a *api) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var body drivers.CreateInput
	if !decodeBody(w, r, &body) {
		return
	}

	driver, err := a.drivers.Create(r.Context(), body)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, envelope{Code: 201, Data: driver, Text: "driver-created"})
}
