package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/services/refuse"
)

// envelope — единый формат ответа. Бизнес-исход кодируется полем code,
// транспортный статус всегда 200.
type envelope struct {
	Code       int                `json:"code"`
	Text       string             `json:"text,omitempty"`
	Message    string             `json:"message,omitempty"`
	Token      string             `json:"token,omitempty"`
	User       any                `json:"user,omitempty"`
	Data       any                `json:"data,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

func respond(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encode response", "err", err)
	}
}

// respondErr переводит отказ в конверт; всё остальное — внутренняя ошибка.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	if re, ok := refuse.As(err); ok {
		respond(w, envelope{Code: re.Code, Text: re.Text, Data: re.Data})
		return
	}
	slog.Error("request failed",
		"method", r.Method,
		"url", r.URL.String(),
		"err", err,
	)
	respond(w, envelope{Code: 500, Text: "server-error"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond(w, envelope{Code: 400, Text: "invalid-json-body"})
		return false
	}
	return true
}
