package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const maxRequestIDLength = 64

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// requestID reuses a caller-supplied X-Request-ID when it is short and
// printable, otherwise generates one.
func requestID(r *http.Request) string {
	id := sanitizeInput(r.Header.Get("X-Request-ID"))
	if id == "" || len(id) > maxRequestIDLength || strings.ContainsAny(id, " \t\r\n") {
		return generateRequestID()
	}
	return id
}
