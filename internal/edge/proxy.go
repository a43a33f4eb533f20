package edge

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	httperrors "github.com/dropDatabas3/bizgate/internal/http/errors"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

// Route asocia un prefijo de path a un servicio interno. El path se
// reenvía completo, sin recortar el prefijo.
type Route struct {
	Prefix   string
	Upstream string
}

type compiledRoute struct {
	prefix   string
	upstream *url.URL
	proxy    *httputil.ReverseProxy
}

// Router elige la ruta de prefijo más largo y hace reverse proxy.
// Sin ruta: 404 ROUTE_NOT_FOUND. Error del upstream: 502 BAD_GATEWAY.
type Router struct {
	routes []compiledRoute
}

// NewRouter compila la tabla. Prefijos duplicados o URLs inválidas son
// error de configuración.
func NewRouter(routes []Route, transport http.RoundTripper) (*Router, error) {
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}
	seen := make(map[string]struct{}, len(routes))
	out := make([]compiledRoute, 0, len(routes))
	for _, rt := range routes {
		prefix := "/" + strings.TrimLeft(strings.TrimSpace(rt.Prefix), "/")
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("edge: duplicate route prefix %q", prefix)
		}
		seen[prefix] = struct{}{}

		u, err := url.Parse(strings.TrimSpace(rt.Upstream))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("edge: invalid upstream %q for %q", rt.Upstream, prefix)
		}
		out = append(out, compiledRoute{prefix: prefix, upstream: u, proxy: newProxy(u, transport)})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].prefix) > len(out[j].prefix) })
	return &Router{routes: out}, nil
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Set(HeaderForwarded, "bizgate")
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.From(r.Context()).Warn("upstream request failed",
				logger.Component("edge.proxy"),
				logger.Upstream(target.Host),
				logger.Err(err),
			)
			httperrors.WriteError(w, httperrors.ErrBadGateway)
		},
	}
}

// Match retorna la ruta para path, o false.
func (rt *Router) Match(path string) (Route, bool) {
	if c, ok := rt.match(path); ok {
		return Route{Prefix: c.prefix, Upstream: c.upstream.String()}, true
	}
	return Route{}, false
}

func (rt *Router) match(path string) (compiledRoute, bool) {
	for _, c := range rt.routes {
		if strings.HasPrefix(path, c.prefix) {
			return c, true
		}
	}
	return compiledRoute{}, false
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, ok := rt.match(r.URL.Path)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
		return
	}
	c.proxy.ServeHTTP(w, r)
}
