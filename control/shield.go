package control

import "net/http"

// DefaultMaxBody caps request bodies on the control API. Decoding a larger
// body fails and the handler answers 400.
const DefaultMaxBody = 64 << 10

// apiHeaders are set on every control API response. The API only serves
// JSON and holds card data, so nothing is cacheable or frameable.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Cache-Control":           "no-store",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range apiHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
