package handler

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/joedanields/Automated-CO-PO/internal/i18n"
)

const passwordHeader = "X-API-Password"

// requirePassword guards every route with the configured API password. With
// no hash configured the deployment is open, which suits the typical
// department-intranet setup.
func (h *Handler) requirePassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.APIPasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		supplied := r.Header.Get(passwordHeader)
		if supplied == "" || bcrypt.CompareHashAndPassword([]byte(h.config.APIPasswordHash), []byte(supplied)) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": appI18n.T(r.Context(), "error.unauthorized"),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
