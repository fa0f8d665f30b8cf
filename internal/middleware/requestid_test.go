package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"ヘッダーなしは生成", "", false},
		{"妥当なIDは引き継ぐ", "abc-123_def.4", true},
		{"空白を含むIDは置き換える", "abc 123", false},
		{"長すぎるIDは置き換える", strings.Repeat("a", 65), false},
		{"改行を含むIDは置き換える", "abc\nInjected: 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID, _ = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Result().Header.Get(RequestIDHeader)
			if got != ctxID {
				t.Errorf("header %q != context %q", got, ctxID)
			}
			if tt.keep {
				if got != tt.incoming {
					t.Errorf("request ID = %q, want %q", got, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("request ID %q is not a UUID: %v", got, err)
			}
		})
	}
}

func TestRequestIDMiddleware_UniquePerRequest(t *testing.T) {
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Result().Header.Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID %q", id)
		}
		seen[id] = true
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if _, err := RequestIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without request ID")
	}
}
