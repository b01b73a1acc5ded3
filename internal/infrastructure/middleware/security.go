package middleware

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/rs/zerolog"
)

// MaxBodyBytes caps request bodies
const MaxBodyBytes = 1 << 20

// SecurityHeadersMiddleware sets response headers for an app embedded in the Shopify admin
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "frame-ancestors https://*.myshopify.com https://admin.shopify.com")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// InputValidationMiddleware bounds request bodies and requires JSON on writes
func InputValidationMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			}

			if r.Method == http.MethodPost && r.ContentLength != 0 {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					logger.Debug().Str("path", r.URL.Path).Str("contentType", r.Header.Get("Content-Type")).Msg("Rejected non-JSON body")
					writeJSONError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
