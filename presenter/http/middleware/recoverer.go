package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/poanetwork/bridge-prover/logging"
)

// Recoverer turns handler panics into a plain 500 and logs them with
// the recovered value and stack.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger := logging.LoggerFromContext(r.Context()).WithField("stack", string(debug.Stack()))
				if err, ok := p.(error); ok {
					logger = logger.WithError(err)
				} else {
					logger = logger.WithField("recovered", p)
				}
				logger.Error("recovered panic in http handler")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
