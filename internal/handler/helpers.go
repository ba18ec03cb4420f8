package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/order"
	"github.com/rosegold-gallery/storefront/internal/user"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, user.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, order.ErrInvalidCart),
		errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, order.ErrTotalMismatch),
		errors.Is(err, order.ErrInvalidAddress),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage keeps internal failure detail out of responses: domain
// rejections surface verbatim so the caller can correct the request, while
// anything unexpected becomes opaque.
func clientMessage(err error) string {
	if mapErrorToStatusCode(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("validation failed on field %q (rule %q)", fe.Field(), fe.Tag())
	}
	return "validation failed"
}
