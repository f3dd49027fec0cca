package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"lodgic/pkg/logger"
)

const SignatureHeader = "X-Signature-256"

// SignatureVerification authenticates collaborator requests with an
// HMAC-SHA256 of the raw body. Only mutating methods are checked; reads stay
// open to any caller behind the gateway.
func SignatureVerification(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			signature := strings.TrimPrefix(r.Header.Get(SignatureHeader), "sha256=")
			if signature == "" {
				reject(w, log, r, "missing signature")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				reject(w, log, r, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(body)
			expected := hex.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(expected), []byte(signature)) {
				reject(w, log, r, "signature mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Request signature verification failed",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"method", r.Method,
		"reason", reason,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid request signature"}`))
}
