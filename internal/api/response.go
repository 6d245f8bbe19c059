package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// fallbackErrorBody is sent when a response cannot be encoded.
const fallbackErrorBody = `{"status":"error","message":"Internal server error"}`

// writeJSONResponse encodes response before touching the headers so an encoding failure can
// still become a clean 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		body = []byte(fallbackErrorBody)
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Server.writeJSONResponse: client went away", "error", err)
	}
}

// writeError sends the error envelope with message.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, models.Error(message))
}
