package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs each request with method, path, status and
// duration.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).Round(time.Microsecond).String(),
		}).Debug("Request handled")
	})
}

// requireBasicAuth checks the request's basic auth credentials
// against the configured users. Passwords are stored as bcrypt
// hashes.
func (s *server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="regressoor"`)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		for _, user := range s.cfg.API.Auth.Users {
			if user.Username != username {
				continue
			}

			if bcrypt.CompareHashAndPassword(
				[]byte(user.PasswordHash), []byte(password),
			) == nil {
				next.ServeHTTP(w, r)

				return
			}

			break
		}

		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"invalid credentials"})
	})
}
