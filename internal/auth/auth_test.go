package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	enabled := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	disabled := Middleware(Config{})(ok)

	tests := []struct {
		name       string
		handler    http.Handler
		path       string
		header     string
		wantStatus int
	}{
		{"disabled passes everything", disabled, "/api/v1/lighttime", "", http.StatusOK},
		{"probe is public", enabled, "/healthz", "", http.StatusOK},
		{"metrics is public", enabled, "/metrics", "", http.StatusOK},
		{"missing header", enabled, "/api/v1/lighttime", "", http.StatusUnauthorized},
		{"wrong scheme", enabled, "/api/v1/lighttime", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", enabled, "/api/v1/lighttime", "Bearer nope", http.StatusUnauthorized},
		{"bare token", enabled, "/api/v1/lighttime", "s3cret", http.StatusUnauthorized},
		{"valid token", enabled, "/api/v1/lighttime/series", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}
