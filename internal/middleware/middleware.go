// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/invoicer/internal/domain"
)

type contextKey string

// respondWithError writes an error response to the client.
// It mirrors handler.ErrorResponse for the few errors raised before a
// handler runs; handler imports this package, so the reverse is not possible.
func respondWithError(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)

	GetLogger(r.Context()).Info("middleware error",
		"error", err.Error(),
		"code", code,
		"status", status,
	)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	http.Error(w, message, status)
}

// respondTooLarge is a convenience wrapper for 413 errors.
func respondTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	err := domain.Errorf(domain.ETOOLARGE, "", "%s", message)
	respondWithError(w, r, http.StatusRequestEntityTooLarge, err)
}
