// Package control is the Control Plane (spec section 4.7): thin HTTP
// translators over the Queue Manager, Ingestor, and Worker Pool. No handler
// here duplicates queue-state logic; every mutation is delegated.
package control

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/transcript-harvester/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// detail is the error envelope shape from spec section 6.1: "Error
// responses use HTTP status + {detail: string}".
type detail struct {
	Detail string `json:"detail"`
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, detail{Detail: message})
}
