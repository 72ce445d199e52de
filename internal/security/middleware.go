package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/noah-isme/cafe-pricing/internal/common"
)

// Headers sets defensive response headers on every reply.
type Headers struct {
	// HSTSMaxAge enables Strict-Transport-Security on TLS requests when positive.
	HSTSMaxAge int
}

// Middleware attaches the headers before delegating.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if h.HSTSMaxAge > 0 && r.TLS != nil {
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(h.HSTSMaxAge))
		}
		next.ServeHTTP(w, r)
	})
}

// BodyLimit caps request payloads at Max bytes.
type BodyLimit struct {
	Max int64
}

// Middleware buffers the body up to Max and answers 413 PAYLOAD_TOO_LARGE beyond it.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			tooLarge(w, b.Max)
			return
		}
		buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		if err != nil && !errors.Is(err, io.EOF) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		if int64(len(buf)) > b.Max {
			tooLarge(w, b.Max)
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, max int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", map[string]any{"maxBytes": max})
}
