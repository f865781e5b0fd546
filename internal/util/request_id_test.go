package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "reuses client id", incoming: "req-7f3a.claim:42", keep: true},
		{name: "generates when missing"},
		{name: "replaces oversized", incoming: strings.Repeat("x", maxRequestIDLen+1)},
		{name: "replaces id with spaces", incoming: "abc def"},
		{name: "replaces id with quotes", incoming: `abc"level":"ERROR`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
				if LoggerFromContext(r.Context()) == nil {
					t.Fatal("expected request logger in context")
				}
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/all-items", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("context id %q, header id %q", seen, rec.Header().Get(RequestIDHeader))
			}
			if tc.keep && seen != tc.incoming {
				t.Fatalf("id = %q, want %q", seen, tc.incoming)
			}
			if !tc.keep && seen == tc.incoming {
				t.Fatalf("expected %q to be replaced", tc.incoming)
			}
		})
	}
}

func TestRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	if got := RequestID(req.Context()); got != "" {
		t.Fatalf("RequestID = %q, want empty", got)
	}
}
