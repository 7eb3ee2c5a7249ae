package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"
)

type contextKey string

// operatorKey stores the authenticated admin username in the request context.
const operatorKey contextKey = "operator"

// Operator returns the authenticated admin for the request, or "".
func Operator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}

// WithOperator returns a context carrying the operator name.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// AdminAuth returns middleware that requires HTTP Basic credentials matching
// user and password. The username becomes the request's operator, which
// forgery tokens are bound to.
func AdminAuth(user, password, realm string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, gotPass, ok := r.BasicAuth()
			if !ok || !secureEqual(gotUser, user) || !secureEqual(gotPass, password) {
				if ok {
					logger.WarnContext(r.Context(), "admin authentication failed",
						slog.String("user", gotUser),
						slog.String("remote", r.RemoteAddr),
					)
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if rw, ok := w.(*responseWriter); ok {
				rw.operator = gotUser
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), gotUser)))
		})
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FetchMetadata returns middleware that rejects unsafe-method requests a browser
// marks as cross-site. Sec-Fetch-Site is a structured-field token (RFC 8941).
// Requests without the header (older browsers, CLI and MCP clients) pass;
// those still need a valid nonce to change anything.
func FetchMetadata(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			site, err := ParseFetchSite(r.Header.Get("Sec-Fetch-Site"))
			if err != nil {
				logger.WarnContext(r.Context(), "malformed Sec-Fetch-Site header",
					slog.String("header", r.Header.Get("Sec-Fetch-Site")),
					slog.String("error", err.Error()),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			switch site {
			case "", "same-origin", "none":
				next.ServeHTTP(w, r)
			default:
				logger.WarnContext(r.Context(), "cross-site request rejected",
					slog.String("sec_fetch_site", site),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
			}
		})
	}
}

// ParseFetchSite returns the Sec-Fetch-Site token, or "" when the header is absent.
func ParseFetchSite(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}

	item, err := httpsfv.UnmarshalItem([]string{header})
	if err != nil {
		return "", err
	}
	token, ok := item.Value.(httpsfv.Token)
	if !ok {
		return "", errNotToken
	}
	return string(token), nil
}

var errNotToken = errors.New("Sec-Fetch-Site must be a token")

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
