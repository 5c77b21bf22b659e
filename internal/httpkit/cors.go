package httpkit

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSOptions configures CORS. Zero fields take the defaults the video API
// needs: GET, POST and DELETE, the request id header, and a ten minute
// preflight cache.
type CORSOptions struct {
	// AllowedOrigins may contain "*", which allows any origin. The caller's
	// Origin is echoed back either way.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type corsPolicy struct {
	origins []string
	headers map[string]string
}

func (p *corsPolicy) allows(origin string) bool {
	return origin != "" && (slices.Contains(p.origins, "*") || slices.Contains(p.origins, origin))
}

func orDefault(v []string, def ...string) string {
	if len(v) == 0 {
		v = def
	}
	return strings.Join(v, ", ")
}

// CORS answers preflight requests with 204 and decorates responses to
// allowed origins.
func CORS(opt CORSOptions) func(http.Handler) http.Handler {
	maxAge := opt.MaxAge
	if maxAge == 0 {
		maxAge = 600
	}
	p := &corsPolicy{
		origins: trimAll(opt.AllowedOrigins),
		headers: map[string]string{
			"Access-Control-Allow-Methods":  orDefault(opt.AllowedMethods, http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions),
			"Access-Control-Allow-Headers":  orDefault(opt.AllowedHeaders, "Content-Type", "Accept", "X-Request-ID"),
			"Access-Control-Expose-Headers": orDefault(opt.ExposedHeaders, "X-Request-ID", "Content-Disposition"),
			"Access-Control-Max-Age":        strconv.Itoa(maxAge),
		},
	}
	if opt.AllowCredentials {
		p.headers["Access-Control-Allow-Credentials"] = "true"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); p.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				for k, v := range p.headers {
					h.Set(k, v)
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// trimAll flattens comma separated entries and drops blanks.
func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
