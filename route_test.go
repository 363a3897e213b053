package picoserve

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func nopHandler(context.Context, *Request, *Response) error {
	return nil
}

func mustRoute(t *testing.T, pattern string, opts RouteOptions) *Route {
	t.Helper()
	rt, err := newRoute(pattern, nopHandler, opts)
	require.NoError(t, err)
	return rt
}

func TestParsePattern(t *testing.T) {
	for _, pattern := range []string{"/", "/index.html", "/a/b/c", "/images/<fn>", "/user/<id>/posts"} {
		_, err := parsePattern(pattern)
		require.NoError(t, err, pattern)
	}
	for _, pattern := range []string{"", "relative", "/a?b=c", "/a/<>", "/a/x<y>"} {
		_, err := parsePattern(pattern)
		require.Error(t, err, pattern)
	}
}

func TestResolveStatic(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/", RouteOptions{})))
	require.NoError(t, table.add(mustRoute(t, "/index.html", RouteOptions{})))

	rt, params, err := table.resolve(http.MethodGet, "/index.html")
	require.NoError(t, err)
	require.Equal(t, "/index.html", rt.Pattern())
	require.Empty(t, params)

	rt, _, err = table.resolve(http.MethodGet, "/")
	require.NoError(t, err)
	require.Equal(t, "/", rt.Pattern())

	_, _, err = table.resolve(http.MethodGet, "/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveParams(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/images/<fn>", RouteOptions{})))

	rt, params, err := table.resolve(http.MethodGet, "/images/cat.png")
	require.NoError(t, err)
	require.Equal(t, "/images/<fn>", rt.Pattern())
	require.Equal(t, map[string]string{"fn": "cat.png"}, params)

	// parameter segments never match an empty segment
	_, _, err = table.resolve(http.MethodGet, "/images/")
	require.ErrorIs(t, err, ErrNotFound)

	// nor more than one segment
	_, _, err = table.resolve(http.MethodGet, "/images/a/b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMethodNotAllowed(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/readonly", RouteOptions{Methods: []string{"GET"}})))
	require.NoError(t, table.add(mustRoute(t, "/readonly", RouteOptions{Methods: []string{"POST"}})))

	// a matched path with a disallowed method yields 405, never a fall
	// through to a later route with the same path shape
	_, _, err := table.resolve(http.MethodPost, "/readonly")
	require.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestResolveRegistrationOrder(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/a/<x>", RouteOptions{})))
	require.NoError(t, table.add(mustRoute(t, "/a/b", RouteOptions{})))

	// first registered wins, regardless of specificity
	rt, params, err := table.resolve(http.MethodGet, "/a/b")
	require.NoError(t, err)
	require.Equal(t, "/a/<x>", rt.Pattern())
	require.Equal(t, map[string]string{"x": "b"}, params)
}

func TestResolveOptionsAlwaysAllowed(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/thing", RouteOptions{Methods: []string{"GET"}})))

	rt, _, err := table.resolve(http.MethodOptions, "/thing")
	require.NoError(t, err)
	require.Equal(t, "/thing", rt.Pattern())
}

func TestDuplicateRoute(t *testing.T) {
	var table routeTable
	require.NoError(t, table.add(mustRoute(t, "/x", RouteOptions{})))
	require.ErrorIs(t, table.add(mustRoute(t, "/x", RouteOptions{Methods: []string{"POST"}})), ErrDuplicateRoute)
}

func TestRouteMethodsNotMutated(t *testing.T) {
	methods := []string{"get", "post"}
	rt := mustRoute(t, "/x", RouteOptions{Methods: methods})
	require.Equal(t, []string{"GET", "POST"}, rt.methods)

	// the caller's slice is left alone and can be reused
	require.Equal(t, []string{"get", "post"}, methods)
	other := mustRoute(t, "/y", RouteOptions{Methods: methods})
	require.Equal(t, []string{"GET", "POST"}, other.methods)
}

func TestRouteDefaults(t *testing.T) {
	rt := mustRoute(t, "/x", RouteOptions{})
	require.Equal(t, []string{http.MethodGet}, rt.methods)
	require.Equal(t, defaultMaxBodySize, rt.maxBodySize)
	require.True(t, rt.parseHeaders)
	require.Equal(t, "*", rt.acOrigins)
	require.Equal(t, "*", rt.acHeaders)

	require.True(t, rt.savesHeader("Content-Length"))
	require.True(t, rt.savesHeader("Content-Type"))
	require.False(t, rt.savesHeader("User-Agent"))

	saved := mustRoute(t, "/y", RouteOptions{SaveHeaders: []string{"authorization"}})
	require.True(t, saved.savesHeader("Authorization"))

	fast := mustRoute(t, "/z", RouteOptions{SkipHeaders: true})
	require.False(t, fast.parseHeaders)
}
