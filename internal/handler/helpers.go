package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wanderhub/checkout-service/internal/order"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithDomainError maps business failures to HTTP statuses. Ownership
// failures come out as a plain not-found on purpose: callers must not be
// able to probe which order ids exist.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	var serr *order.StateError

	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "order validation failed",
			"reasons": verr.Reasons,
		})
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrForbidden):
		respondWithError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &serr):
		respondWithError(w, http.StatusConflict, serr.Error())
	case errors.Is(err, order.ErrStockConflict):
		respondWithJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"retryable": true,
		})
	default:
		log.Error().Err(err).Msg("handler: unexpected error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
