package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/difyrelay/pkg/config"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	Enabled bool

	// AllowedOrigins lists exact origins, "*" for any origin, or patterns
	// with a single leading wildcard label such as "https://*.example.com".
	AllowedOrigins []string

	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int
	AllowCredentials bool
}

// CORSConfigFrom converts the proxy CORS settings.
func CORSConfigFrom(cfg config.CORSConfig) *CORSConfig {
	return &CORSConfig{
		Enabled:          cfg.Enabled,
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		MaxAge:           cfg.MaxAge,
		AllowCredentials: cfg.AllowCredentials,
	}
}

// originMatcher answers whether an Origin header is allowed.
type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	prefix string // scheme, e.g. "https://"
	suffix string // e.g. ".example.com"
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(o)
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			i := strings.Index(o, "*")
			m.suffixes = append(m.suffixes, wildcardOrigin{prefix: o[:i], suffix: o[i+1:]})
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allowed(origin string) bool {
	if m.any {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.suffixes {
		if strings.HasPrefix(origin, w.prefix) && strings.HasSuffix(origin, w.suffix) &&
			len(origin) > len(w.prefix)+len(w.suffix) {
			return true
		}
	}
	return false
}

// CORSMiddleware adds CORS headers for allowed origins and answers preflight
// requests with 204. The configuration is compiled once.
//
// With credentials enabled the request origin is echoed instead of "*",
// since browsers reject a wildcard on credentialed requests. Responses that
// depend on the origin carry Vary: Origin.
//
// Example usage:
//
//	handler = CORSMiddleware(CORSConfigFrom(cfg.Proxy.CORS))(handler)
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	if config == nil || !config.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	matcher := newOriginMatcher(config.AllowedOrigins)
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")
	maxAge := ""
	if config.MaxAge > 0 {
		maxAge = strconv.Itoa(config.MaxAge)
	}
	wildcard := matcher.any && !config.AllowCredentials

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if !wildcard {
				h.Add("Vary", "Origin")
			}
			if !matcher.allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if config.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
