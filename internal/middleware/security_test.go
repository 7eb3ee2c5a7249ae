package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdminAuth(t *testing.T) {
	var gotOperator string
	handler := AdminAuth("admin", "secret", "Manual Purchases", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotOperator = Operator(r.Context())
		}))

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		wantStatus int
	}{
		{"valid credentials", "admin", "secret", true, http.StatusOK},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret", true, http.StatusUnauthorized},
		{"no credentials", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOperator = ""
			req := httptest.NewRequest("GET", "/admin/payments/new", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotOperator != "admin" {
				t.Errorf("Operator = %q, want admin", gotOperator)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if w.Header().Get("WWW-Authenticate") == "" {
					t.Error("missing WWW-Authenticate challenge")
				}
				if gotOperator != "" {
					t.Error("handler should not run without credentials")
				}
			}
		})
	}
}

func TestFetchMetadata(t *testing.T) {
	handler := FetchMetadata(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		site       string
		wantStatus int
	}{
		{"same origin post", "POST", "same-origin", http.StatusNoContent},
		{"user initiated post", "POST", "none", http.StatusNoContent},
		{"header absent", "POST", "", http.StatusNoContent},
		{"cross site post", "POST", "cross-site", http.StatusForbidden},
		{"same site post", "POST", "same-site", http.StatusForbidden},
		{"cross site get", "GET", "cross-site", http.StatusNoContent},
		{"string instead of token", "POST", `"same-origin"`, http.StatusForbidden},
		{"garbage", "POST", "@@@", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/admin/actions", nil)
			if tt.site != "" {
				req.Header.Set("Sec-Fetch-Site", tt.site)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestParseFetchSite(t *testing.T) {
	site, err := ParseFetchSite(" same-origin ")
	if err != nil || site != "same-origin" {
		t.Errorf("ParseFetchSite = %q, %v", site, err)
	}

	site, err = ParseFetchSite("")
	if err != nil || site != "" {
		t.Errorf("ParseFetchSite(empty) = %q, %v", site, err)
	}
}
