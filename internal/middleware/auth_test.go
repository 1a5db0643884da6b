package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWebhookAuth(t *testing.T) {
	h := WebhookAuth("whsec_abc")(okHandler())

	cases := []struct {
		name   string
		secret string
		want   int
	}{
		{"missing secret", "", http.StatusUnauthorized},
		{"wrong secret", "nope", http.StatusUnauthorized},
		{"valid secret", "whsec_abc", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/events/database", nil)
			if tc.secret != "" {
				req.Header.Set(WebhookSecretHeader, tc.secret)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{"dashboard": "key-123"}

	var caller string
	h := APIKeyAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"bearer format", "Bearer key-123", http.StatusOK},
		{"bare key format", "key-123", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller = ""
			req := httptest.NewRequest("GET", "/v1/submissions/sub-1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "dashboard", caller)
			}
		})
	}
}

func TestAPIKeyAuthDisabledWhenEmpty(t *testing.T) {
	h := APIKeyAuth(nil)(okHandler())
	req := httptest.NewRequest("GET", "/v1/submissions/sub-1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
