package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "open allowlist", method: http.MethodGet, origin: "http://a.test", wantOrigin: "*", wantStatus: http.StatusOK},
		{name: "allowed origin echoed", allowed: []string{"http://a.test"}, method: http.MethodGet, origin: "http://a.test", wantOrigin: "http://a.test", wantStatus: http.StatusOK},
		{name: "unknown origin gets no header", allowed: []string{"http://a.test"}, method: http.MethodGet, origin: "http://b.test", wantOrigin: "", wantStatus: http.StatusOK},
		{name: "preflight short-circuits", method: http.MethodOptions, origin: "http://a.test", wantOrigin: "*", wantStatus: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/all-items", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			WithCORS(tc.allowed, next).ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("allow origin = %q, want %q", got, tc.wantOrigin)
			}
		})
	}
}
