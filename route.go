package picoserve

import (
	"context"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"

	"golang.org/x/exp/slices"
)

// Handler serves one request. Returning an error (or panicking) before output
// has started makes the connection handler send a 500 error response;
// afterwards the connection is simply closed.
type Handler func(ctx context.Context, r *Request, w *Response) error

// RouteOptions configures a registered route. The zero value serves GET with
// the defaults below.
type RouteOptions struct {
	// Methods lists the allowed HTTP methods. Defaults to GET only.
	Methods []string

	// SaveHeaders names the request headers to retain for the handler.
	// Content-Length and Content-Type are always retained.
	SaveHeaders []string

	// MaxBodySize bounds the request body. Defaults to 1024 bytes.
	MaxBodySize int

	// SkipHeaders skips reading the header section entirely: the handler
	// runs right after routing and no body is read. Off by default.
	SkipHeaders bool

	// AccessControlHeaders and AccessControlOrigins are the values for the
	// corresponding Access-Control-Allow-* response headers. Default "*".
	AccessControlHeaders string
	AccessControlOrigins string
}

const defaultMaxBodySize = 1024

// Route is an immutable registered route: a pattern of literal or <name>
// parameter segments, a handler and its per-route policy.
type Route struct {
	pattern      string
	segments     []segment
	handler      Handler
	methods      []string
	save         map[string]bool
	maxBodySize  int
	parseHeaders bool
	acHeaders    string
	acMethods    string
	acOrigins    string
}

type segment struct {
	literal string
	param   string // non-empty for <name> segments
}

func newRoute(pattern string, handler Handler, opts RouteOptions) (*Route, error) {
	segments, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("route %s: nil handler", pattern)
	}
	methods := []string{http.MethodGet}
	if len(opts.Methods) > 0 {
		// normalize a copy, the caller keeps ownership of its slice
		methods = make([]string, len(opts.Methods))
		for i, m := range opts.Methods {
			methods[i] = strings.ToUpper(m)
		}
	}
	rt := &Route{
		pattern:      pattern,
		segments:     segments,
		handler:      handler,
		methods:      methods,
		maxBodySize:  opts.MaxBodySize,
		parseHeaders: !opts.SkipHeaders,
		acHeaders:    opts.AccessControlHeaders,
		acMethods:    strings.Join(methods, ", "),
		acOrigins:    opts.AccessControlOrigins,
	}
	if rt.maxBodySize == 0 {
		rt.maxBodySize = defaultMaxBodySize
	}
	if rt.acHeaders == "" {
		rt.acHeaders = "*"
	}
	if rt.acOrigins == "" {
		rt.acOrigins = "*"
	}
	if len(opts.SaveHeaders) > 0 {
		rt.save = make(map[string]bool, len(opts.SaveHeaders))
		for _, name := range opts.SaveHeaders {
			rt.save[textproto.CanonicalMIMEHeaderKey(name)] = true
		}
	}
	return rt, nil
}

// Pattern returns the pattern the route was registered with.
func (rt *Route) Pattern() string {
	return rt.pattern
}

func (rt *Route) savesHeader(name string) bool {
	return name == headerContentLength || name == headerContentType || rt.save[name]
}

// match compares a split request path against the pattern. Literal segments
// must match exactly (case-sensitive); parameter segments bind any non-empty
// segment by name.
func (rt *Route) match(segs []string) (map[string]string, bool) {
	if len(segs) != len(rt.segments) {
		return nil, false
	}
	var params map[string]string
	for i, s := range rt.segments {
		if s.param != "" {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = map[string]string{}
			}
			params[s.param] = segs[i]
			continue
		}
		if s.literal != segs[i] {
			return nil, false
		}
	}
	return params, true
}

func parsePattern(pattern string) ([]segment, error) {
	if pattern == "" || !strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "?") {
		return nil, fmt.Errorf("invalid route pattern %q", pattern)
	}
	parts := splitPath(pattern)
	segments := make([]segment, len(parts))
	for i, part := range parts {
		if strings.HasPrefix(part, "<") && strings.HasSuffix(part, ">") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, fmt.Errorf("invalid route pattern %q: empty parameter name", pattern)
			}
			segments[i] = segment{param: name}
			continue
		}
		if strings.ContainsAny(part, "<>") {
			return nil, fmt.Errorf("invalid route pattern %q: parameter must span a whole segment", pattern)
		}
		segments[i] = segment{literal: part}
	}
	return segments, nil
}

func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// routeTable is the append-only ordered route collection. It is written only
// before serving starts and read-only afterwards, so routing needs no locks.
type routeTable struct {
	routes []*Route
}

func (t *routeTable) add(rt *Route) error {
	for _, existing := range t.routes {
		if existing.pattern == rt.pattern {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, rt.pattern)
		}
	}
	t.routes = append(t.routes, rt)
	return nil
}

// resolve finds the first route whose pattern matches path, in registration
// order. A path match with a disallowed method resolves to the matched route
// and ErrMethodNotAllowed without falling through to later routes. OPTIONS is
// accepted on any matched route (it is answered automatically). No match at
// all resolves to ErrNotFound.
func (t *routeTable) resolve(method, path string) (*Route, map[string]string, error) {
	segs := splitPath(path)
	for _, rt := range t.routes {
		params, ok := rt.match(segs)
		if !ok {
			continue
		}
		if method != http.MethodOptions && !slices.Contains(rt.methods, method) {
			return rt, nil, ErrMethodNotAllowed
		}
		return rt, params, nil
	}
	return nil, nil, ErrNotFound
}
