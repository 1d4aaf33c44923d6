package httpserver

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// loggingMiddleware logs each request's method and path before passing it on.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("http request")
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware turns a panic in a downstream handler into a 500 instead
// of taking the whole server down.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from panic serving http request")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
