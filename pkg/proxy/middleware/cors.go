package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORSMiddleware.
type CORSConfig struct {
	// AllowedMethods is sent on preflight responses.
	AllowedMethods []string

	// AllowedHeaders is sent on preflight responses. "*" allows any.
	AllowedHeaders []string

	// ExposedHeaders lists response headers readable by browser scripts.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Zero omits it.
	MaxAge int
}

// DefaultCORSConfig returns the gateway defaults: every origin may call
// every command with GET, POST or PUT.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}
}

// CORSMiddleware sets Access-Control-Allow-Origin: * on every response and
// answers OPTIONS preflights itself with 200 and an empty body, whatever
// the path.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
			h.Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		})
	}
}
