package handlers

import (
	"net/http"

	"github.com/finsight/finsight/internal/api"
)

// HealthHandler reports that the server is up
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok"})
}
