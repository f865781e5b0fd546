package util

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name      string
		path      string
		proto     string
		tls       bool
		wantHSTS  bool
		wantCache string
	}{
		{name: "plain api call", path: "/api/lost-items", wantCache: "no-store"},
		{name: "image is cacheable", path: "/uploads/a.png"},
		{name: "forwarded https", path: "/api/helpers", proto: "HTTPS", wantHSTS: true, wantCache: "no-store"},
		{name: "direct tls", path: "/healthz", tls: true, wantHSTS: true, wantCache: "no-store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			for _, kv := range baseSecurityHeaders {
				if got := rec.Header().Get(kv[0]); got != kv[1] {
					t.Fatalf("%s = %q, want %q", kv[0], got, kv[1])
				}
			}
			if got := rec.Header().Get("Cache-Control"); got != tc.wantCache {
				t.Fatalf("Cache-Control = %q, want %q", got, tc.wantCache)
			}
			if got := rec.Header().Get("Strict-Transport-Security"); (got != "") != tc.wantHSTS {
				t.Fatalf("Strict-Transport-Security = %q, want present=%v", got, tc.wantHSTS)
			}
		})
	}
}
