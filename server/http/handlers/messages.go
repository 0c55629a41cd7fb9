package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/logging"
)

// DefaultMessagesLimit is used when the limit query parameter is absent
const DefaultMessagesLimit = 200

// MessageReader lists the newest entries of the message log
type MessageReader interface {
	Recent(ctx context.Context, limit int) ([]api.Message, error)
}

// NewMessagesHandler serves GET /messages?limit=N
func NewMessagesHandler(reader MessageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultMessagesLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		messages, err := reader.Recent(r.Context(), limit)
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to list messages", logging.Error(err))
			writeError(w, r, http.StatusInternalServerError, "failed to list messages")
			return
		}

		writeJSON(w, r, http.StatusOK, api.MessagesResponse{Messages: messages})
	}
}
