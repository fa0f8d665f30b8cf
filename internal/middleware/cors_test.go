package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(t *testing.T, allowedOrigin, method string) (*http.Response, bool) {
	t.Helper()
	called := false
	handler := NewCORSMiddleware(allowedOrigin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/img/render", nil)
	req.Header.Set("Origin", allowedOrigin)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Result(), called
}

func TestCORSMiddleware_SimpleRequest(t *testing.T) {
	resp, called := serveCORS(t, "https://wiki.example.com", http.MethodPost)

	if !called {
		t.Error("next handler should be called for POST request")
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "https://wiki.example.com"},
		{"Access-Control-Expose-Headers", "X-Request-ID"},
		{"Vary", "Origin"},
		{"Access-Control-Allow-Credentials", ""},
		// プリフライト専用のヘッダーは付与しない
		{"Access-Control-Allow-Methods", ""},
	}
	for _, tt := range tests {
		if got := resp.Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	resp, called := serveCORS(t, "http://localhost:3000", http.MethodOptions)

	if called {
		t.Error("next handler should not be called for OPTIONS preflight")
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "http://localhost:3000"},
		{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type, X-Request-ID"},
		{"Access-Control-Max-Age", "86400"},
	}
	for _, tt := range tests {
		if got := resp.Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSMiddleware_EmptyOriginDisablesCORS(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodOptions} {
		resp, called := serveCORS(t, "", method)

		if !called {
			t.Errorf("%s: next handler should be called when CORS is disabled", method)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("%s: Access-Control-Allow-Origin = %q, want empty", method, got)
		}
	}
}
