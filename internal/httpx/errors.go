package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/localchefbazaar/bazaar/internal/apperr"
)

type errorResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps err through apperr. Internal causes are logged, not echoed.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Printf("layer=http method=%s path=%s kind=%s err=%v", r.Method, r.URL.Path, apperr.Kind(err), err)
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeJSON(w, code, errorResp{Success: false, Message: msg, Kind: apperr.Kind(err)})
}
