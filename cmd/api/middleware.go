package main

import (
	"errors"
	"net/http"

	"github.com/farxc/household-migrator/internal/auth"
)

// authenticate requires a valid bearer session belonging to a privileged
// subject and stores its claims in the request context.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := app.verifier.Verify(token)
		if err != nil {
			app.logger.Warn(component, "Rejected session: path=%s error=%v", r.URL.Path, err)
			writeJSONError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		if err := app.verifier.Authorize(claims); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, auth.ErrForbidden) {
				status = http.StatusForbidden
			}
			app.logger.Warn(component, "Denied migration access: subject=%s", claims.Subject)
			writeJSONError(w, status, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}
