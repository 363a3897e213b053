package picoserve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/picoserve/picoserve/static"
	"github.com/picoserve/picoserve/tcontext"
	"github.com/picoserve/picoserve/tlog"
	"github.com/ridge/parallel"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Config tunes the server. The zero value serves with the defaults below.
// The listen backlog is a property of the listener, not of the server; use
// tnet.ListenBacklog to bound it.
type Config struct {
	// RequestTimeout bounds reading one request. When it expires the
	// connection is closed without a response. Default 3s.
	RequestTimeout time.Duration

	// MaxConcurrency caps the number of simultaneously served
	// connections. Excess connections wait in the OS listen backlog;
	// the server itself never queues them. Default 8.
	MaxConcurrency int

	// ShutdownGrace is how long in-flight exchanges may finish after the
	// context is closed before their sockets are force-closed. Default 5s.
	ShutdownGrace time.Duration

	// Debug includes failure diagnostics in 500 response bodies.
	Debug bool

	// Files is the filesystem behind Response.SendFile. Default: the
	// current directory.
	Files static.FileSystem
}

const (
	defaultRequestTimeout = 3 * time.Second
	defaultMaxConcurrency = 8
	defaultShutdownGrace  = 5 * time.Second
)

// Server accepts connections, admits at most MaxConcurrency concurrently
// active connection handlers and drives graceful shutdown. It owns the
// listening socket; each accepted socket is owned exclusively by its
// connection handler.
type Server struct {
	listener net.Listener
	cfg      Config
	routes   routeTable
	slots    chan struct{}
	inflight sync.WaitGroup
	active   int32
	running  int32
}

// NewServer creates a server for an existing listener. Use tnet.Listen or
// tnet.ListenBacklog to create one.
func NewServer(listener net.Listener, cfg Config) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}
	if cfg.Files == nil {
		cfg.Files = static.Dir(".")
	}
	return &Server{
		listener: listener,
		cfg:      cfg,
		slots:    make(chan struct{}, cfg.MaxConcurrency),
	}
}

// ListenAddr returns the local address of the server's listener.
func (s *Server) ListenAddr() net.Addr {
	return s.listener.Addr()
}

// Active returns the number of connections currently being served. It never
// exceeds MaxConcurrency.
func (s *Server) Active() int {
	return int(atomic.LoadInt32(&s.active))
}

// Route registers a handler for a pattern. Patterns are /-separated segments,
// each a literal or a <name> parameter; resolution is first match in
// registration order. Routes must be registered before Run; the table is
// immutable while serving.
func (s *Server) Route(pattern string, handler Handler, opts RouteOptions) error {
	if atomic.LoadInt32(&s.running) != 0 {
		return ErrServerRunning
	}
	rt, err := newRoute(pattern, handler, opts)
	if err != nil {
		return err
	}
	return s.routes.add(rt)
}

// Resource registers a REST resource at a pattern. The allowed methods are
// derived from the capability interfaces the resource implements (Getter,
// Poster, Putter, Deleter); opts.Methods and opts.SkipHeaders are ignored.
func (s *Server) Resource(pattern string, res any, opts RouteOptions) error {
	calls := resourceMethods(res)
	if len(calls) == 0 {
		return fmt.Errorf("resource at %s implements no capability", pattern)
	}
	opts.Methods = maps.Keys(calls)
	slices.Sort(opts.Methods)
	opts.SkipHeaders = false
	return s.Route(pattern, resourceHandler(calls), opts)
}

// Run serves requests until ctx is closed, then shuts down: the listener
// closes immediately, in-flight exchanges get ShutdownGrace to finish, and
// whatever remains is cancelled (its sockets closed) before Run returns.
func (s *Server) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerRunning
	}
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		ctx = tlog.With(ctx, zap.Stringer("httpServer", s.listener.Addr()))
		logger := tlog.Get(ctx)

		// Connection contexts stay open during the grace window, which
		// outlives ctx.
		connCtx, connCancel := context.WithCancel(tcontext.Reopen(ctx))

		spawn("accept", parallel.Fail, func(ctx context.Context) error {
			logger.Info("Serving requests")
			for i := 0; ; i++ {
				// A concurrency slot is taken before accepting,
				// so excess connections queue in the OS backlog
				// and are never buffered here.
				select {
				case s.slots <- struct{}{}:
				case <-ctx.Done():
					return ctx.Err()
				}
				conn, err := s.listener.Accept()
				if err != nil {
					<-s.slots
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return err
				}
				s.inflight.Add(1)
				spawn(fmt.Sprintf("conn-%d", i), parallel.Continue, func(context.Context) error {
					defer func() { <-s.slots }()
					s.serveConn(connCtx, conn)
					return nil
				})
			}
		})

		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("Shutting down")
			_ = s.listener.Close()

			done := make(chan struct{})
			go func() {
				s.inflight.Wait()
				close(done)
			}()
			grace := time.NewTimer(s.cfg.ShutdownGrace)
			defer grace.Stop()
			select {
			case <-done:
			case <-grace.C:
				logger.Info("Forcing remaining connections closed")
			}
			connCancel()
			s.inflight.Wait()

			logger.Info("Shutdown complete")
			return ctx.Err()
		})

		return nil
	})
}

// serveConn processes one connection, guaranteeing socket close and slot
// release on every exit path.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.inflight.Done()
	defer conn.Close()
	atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)

	ctx = tlog.With(ctx, zap.Stringer("remoteAddr", conn.RemoteAddr()))

	// Closing the socket is what unblocks a pending read or write when the
	// context is cancelled.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	s.serveExchange(ctx, conn)
}

// serveExchange runs parse → route → dispatch → respond for one request and
// normalizes every failure mode into either a well-formed error response or
// a silent close. The response reaches its terminal state exactly once.
func (s *Server) serveExchange(ctx context.Context, conn net.Conn) {
	logger := tlog.Get(ctx)
	started := time.Now()

	req := &Request{Headers: map[string]string{}}
	w := newResponse(conn, s.cfg)

	err := s.handle(ctx, conn, req, w)

	var perr *ProtocolError
	var hfail handlerFailure
	switch {
	case err == nil:
	case errors.As(err, &perr):
		if w.state == stateNotStarted {
			_ = w.Error(perr.Code, perr.Reason)
		}
	case errors.As(err, &hfail):
		logger.Error("Handler failed", zap.Error(hfail.err))
		if w.state == stateNotStarted {
			_ = w.Error(http.StatusInternalServerError, hfail.err.Error())
		}
	default:
		// Timeout or socket-level failure: too late for a response,
		// the connection is torn down as is.
		logger.Debug("Connection aborted", zap.Error(err))
		w.state = stateDone
		return
	}
	w.state = stateDone

	logger.Debug("Request handled",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("statusCode", w.code),
		zap.Duration("elapsed", time.Since(started)))
}

func (s *Server) handle(ctx context.Context, conn net.Conn, req *Request, w *Response) error {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
	br := bufio.NewReaderSize(conn, readBufferSize)

	if err := req.readRequestLine(br); err != nil {
		return err
	}

	route, params, err := s.routes.resolve(req.Method, req.Path)
	if err != nil {
		return err
	}
	req.PathParams = params
	w.route = route

	// OPTIONS is answered automatically with the route's access-control
	// policy. Content-Length: 0 tells HTTP/1.0 clients not to expect a
	// payload.
	if req.Method == http.MethodOptions {
		w.addAccessControl()
		_ = w.SetHeader(headerContentLength, "0")
		return w.Start("")
	}

	if route.parseHeaders {
		if err := req.readHeaders(br, route); err != nil {
			return err
		}
		if err := req.readBody(br, route); err != nil {
			return err
		}
	}

	// The request is fully parsed; the request timeout no longer applies.
	_ = conn.SetReadDeadline(time.Time{})

	return s.dispatch(ctx, route, req, w)
}

// dispatch invokes the handler, converting a returned error or a panic into
// handlerFailure. A panic must never take down the accept loop.
func (s *Server) dispatch(ctx context.Context, route *Route, req *Request, w *Response) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = handlerFailure{err: parallel.ErrPanic{Value: p, Stack: debug.Stack()}}
		}
	}()
	if err := route.handler(ctx, req, w); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return err
		}
		return handlerFailure{err: err}
	}
	return nil
}
