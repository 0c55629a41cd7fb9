package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/logging"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context()).Warn("Failed to write response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, api.ErrorResponse{Error: msg})
}
