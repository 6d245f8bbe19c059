package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// HealthResult is the health endpoint payload.
type HealthResult struct {
	Sessions int `json:"sessions"`
}

// InvalidateRequest names the deployment address whose sessions are dropped.
type InvalidateRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address"`
	AppID   string `json:"appId,omitempty"`
}

// InvalidateResult reports how many sessions were removed.
type InvalidateResult struct {
	Deleted int `json:"deleted"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := s.sessions.Count(r.Context())
	if err != nil {
		slog.Error("Server.healthHandler: session count failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Session store unavailable")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(HealthResult{Sessions: n}))
}

// invalidateSessionsHandler drops every session opened against a deployment address, e.g. after
// the deployment's configuration changed, and clears that deployment's cached data.
func (s *Server) invalidateSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.invalidateSessionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.invalidateSecret != "" {
		got := r.Header.Get(InvalidateSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.invalidateSecret)) != 1 {
			slog.Warn("Server.invalidateSessionsHandler: bad secret")
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.invalidateSessionsHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	ch, err := models.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid channel")
		return
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: address")
		return
	}

	n, err := s.sessions.DeleteByAddress(r.Context(), ch, address)
	if err != nil {
		slog.Error("Server.invalidateSessionsHandler: delete failed", "channel", ch, "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to invalidate sessions")
		return
	}
	if req.AppID != "" && s.cache != nil {
		s.cache.InvalidateApp(req.AppID)
	}
	slog.Info("Server.invalidateSessionsHandler: sessions invalidated", "channel", ch, "address", address, "deleted", n, "appID", req.AppID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Sessions invalidated", InvalidateResult{Deleted: n}))
}
