package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowedOrigins = []string{"https://app.example.com", "*.trusted.io"}
	config.AllowCredentials = true

	var reached bool
	h := CORS(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantReached bool
	}{
		{"allowed simple", http.MethodGet, "https://app.example.com", false, "https://app.example.com", http.StatusOK, true},
		{"subdomain", http.MethodGet, "https://api.trusted.io", false, "https://api.trusted.io", http.StatusOK, true},
		{"bare wildcard domain", http.MethodGet, "https://trusted.io", false, "", http.StatusOK, true},
		{"disallowed", http.MethodGet, "https://evil.com", false, "", http.StatusOK, true},
		{"preflight", http.MethodOptions, "https://app.example.com", true, "https://app.example.com", http.StatusNoContent, false},
		{"plain options", http.MethodOptions, "https://app.example.com", false, "https://app.example.com", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantReached, reached)
			if tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
				assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
