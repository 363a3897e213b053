// Package picoserve is an embeddable HTTP/1.0 server for memory-constrained
// hosts. It accepts TCP connections, parses requests incrementally with
// bounded memory, dispatches them to registered handlers or REST-style
// resources, and streams responses back, under a strict concurrency ceiling.
//
// # Server
//
// A Server is controlled with the context passed to its Run method: closing
// the context shuts the server down, giving in-flight exchanges a bounded
// grace period before their sockets are force-closed. This fits hierarchies
// of context-controlled components and plays especially nice with
// parallel.Run.
//
// The server speaks HTTP/1.0, one request per connection. Persistent
// connections, chunked transfer encoding and TLS are out of scope; the only
// HTTP/1.1 phrasing produced is the fixed-length resource response with an
// explicit Connection: close.
//
// # Example
//
//	func RunWebServer(ctx context.Context, addr string) error {
//	    listener, err := tnet.Listen(addr)
//	    if err != nil {
//	        return err
//	    }
//
//	    srv := picoserve.NewServer(listener, picoserve.Config{MaxConcurrency: 4})
//	    err = srv.Route("/", index, picoserve.RouteOptions{})
//	    if err != nil {
//	        return err
//	    }
//	    err = srv.Resource("/customers/<id>", customers{}, picoserve.RouteOptions{})
//	    if err != nil {
//	        return err
//	    }
//	    return srv.Run(ctx)
//	}
//
// # Routes and resources
//
// Route patterns are /-separated segments, each either a literal or a <name>
// parameter binding any non-empty segment verbatim. Resolution is first
// match in registration order; a path match with a disallowed method yields
// 405 without falling through. Routes are registered before Run and are
// immutable while serving.
//
// A resource is any value implementing a subset of Getter, Poster, Putter
// and Deleter; the allowed methods are derived from the capabilities present
// and the responses are JSON with access-control headers.
//
// # Memory bounds
//
// Each connection reads through a fixed-size buffer; a request or header
// line that does not fit fails the request instead of growing memory. Only
// the headers a route saves are retained. Bodies are bounded per route, and
// the bound is checked against Content-Length before body bytes are
// consumed. Files are streamed in fixed-size chunks.
//
// # Logging
//
// For all logging in handlers, use the logger embedded in the request
// context:
//
//	logger := tlog.Get(ctx)
//
// It carries httpServer and remoteAddr fields. The engine itself logs each
// request at Debug level with method, path, status and elapsed time; don't
// repeat those. For an internal error, return it (or panic): the connection
// handler logs it with the stack and sends a generic 500, with diagnostics
// included only when Config.Debug is set.
package picoserve
