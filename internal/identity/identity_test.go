package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareResolvesUserID(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		wantID     string
		wantStatus int
	}{
		{name: "header", header: "max-42", wantID: "max-42", wantStatus: http.StatusOK},
		{name: "query fallback", query: "user@example.com", wantID: "user@example.com", wantStatus: http.StatusOK},
		{name: "header wins", header: "h", query: "q", wantID: "h", wantStatus: http.StatusOK},
		{name: "absent", wantID: "", wantStatus: http.StatusOK},
		{name: "invalid", header: "bad id!", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = UserIDFromContext(r.Context())
			}))

			url := "/api/roadmaps"
			if tt.query != "" {
				url += "?" + QueryParam + "=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code == http.StatusOK && got != tt.wantID {
				t.Fatalf("user id = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestValidRejectsOverlongID(t *testing.T) {
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	if Valid(string(long)) {
		t.Fatal("expected 129-char id to be rejected")
	}
	if !Valid(string(long[:128])) {
		t.Fatal("expected 128-char id to be accepted")
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := IPFromRequest(req); got != "10.0.0.1" {
		t.Fatalf("IPFromRequest = %q", got)
	}
}
