package picoserve

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/picoserve/picoserve/static"
)

type responseState int

const (
	stateNotStarted responseState = iota
	stateHeadersSent
	stateBodyStreaming
	stateDone
)

// fileChunkSize is the streaming unit of SendFile. Files are never buffered
// whole.
const fileChunkSize = 512

const defaultContentType = "text/html"

// DefaultMaxAge is the Cache-Control lifetime SendFile uses when no options
// are given: 30 days.
const DefaultMaxAge = 2592000

// FileOptions adjusts SendFile behavior.
type FileOptions struct {
	// ContentType overrides extension-based detection.
	ContentType string

	// ContentEncoding, if set, is sent as the Content-Encoding header.
	ContentEncoding string

	// MaxAge is the Cache-Control lifetime in seconds. Zero disables
	// caching.
	MaxAge int
}

// Response writes one HTTP response to a connection. Its state machine
// enforces protocol ordering: status and headers may change only before
// output starts, the head is sent at most once, and nothing is written after
// the response is done. A write failure is terminal; a body is never resumed
// mid-stream.
type Response struct {
	conn    io.Writer
	code    int
	version string
	headers []headerField
	state   responseState
	route   *Route
	files   static.FileSystem
	debug   bool
}

type headerField struct {
	name  string
	value string
}

func newResponse(conn io.Writer, cfg Config) *Response {
	return &Response{
		conn:    conn,
		code:    http.StatusOK,
		version: "1.0",
		files:   cfg.Files,
		debug:   cfg.Debug,
	}
}

// SetStatus sets the response status code. Valid only before output starts.
func (w *Response) SetStatus(code int) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	w.code = code
	return nil
}

// SetVersion overrides the HTTP version in the status line. The engine speaks
// HTTP/1.0; resource responses override to "1.1" and add Connection: close
// for client compatibility.
func (w *Response) SetVersion(version string) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	w.version = version
	return nil
}

// SetHeader adds or replaces a response header. Insertion order is preserved
// on the wire. Valid only before output starts.
func (w *Response) SetHeader(name, value string) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	for i := range w.headers {
		if w.headers[i].name == name {
			w.headers[i].value = value
			return nil
		}
	}
	w.headers = append(w.headers, headerField{name: name, value: value})
	return nil
}

// addAccessControl sets the Access-Control-Allow-* headers from the resolved
// route's policy.
func (w *Response) addAccessControl() {
	if w.route == nil {
		return
	}
	_ = w.SetHeader("Access-Control-Allow-Origin", w.route.acOrigins)
	_ = w.SetHeader("Access-Control-Allow-Methods", w.route.acMethods)
	_ = w.SetHeader("Access-Control-Allow-Headers", w.route.acHeaders)
}

// Start sends the status line and headers, with contentType as Content-Type
// if non-empty. Calling it twice fails with ErrInvalidState.
func (w *Response) Start(contentType string) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	if contentType != "" {
		_ = w.SetHeader(headerContentType, contentType)
	}
	return w.writeHead()
}

// Send writes a body chunk, sending the head first with a text/html default
// content type if output has not started yet.
func (w *Response) Send(body []byte) error {
	switch w.state {
	case stateNotStarted:
		if err := w.Start(defaultContentType); err != nil {
			return err
		}
	case stateDone:
		return ErrInvalidState
	}
	w.state = stateBodyStreaming
	if _, err := w.conn.Write(body); err != nil {
		w.state = stateDone
		return err
	}
	return nil
}

// Redirect sends a 302 response pointing at location, with an empty body.
func (w *Response) Redirect(location string) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	w.code = http.StatusFound
	_ = w.SetHeader("Location", location)
	_ = w.SetHeader(headerContentLength, "0")
	if err := w.writeHead(); err != nil {
		return err
	}
	w.state = stateDone
	return nil
}

// Error sends a minimal error response with the given status code. detail is
// included in the body only when the server runs with Debug.
func (w *Response) Error(code int, detail string) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	w.code = code
	body := statusText(code)
	if w.debug && detail != "" {
		body += "\n" + detail
	}
	_ = w.SetHeader(headerContentType, "text/plain")
	_ = w.SetHeader(headerContentLength, strconv.Itoa(len(body)))
	if err := w.writeHead(); err != nil {
		return err
	}
	_, err := io.WriteString(w.conn, body)
	w.state = stateDone
	return err
}

// SendFile streams the named file from the server's filesystem collaborator
// in fixed-size chunks, with Content-Length, Content-Type and Cache-Control
// headers. A nil opts means defaults (detected content type, 30-day cache).
// A missing file turns into a 404 error response, not an error return.
func (w *Response) SendFile(name string, opts *FileOptions) error {
	if w.state != stateNotStarted {
		return ErrInvalidState
	}
	if opts == nil {
		opts = &FileOptions{MaxAge: DefaultMaxAge}
	}
	f, err := w.files.Open(name)
	if err != nil {
		return w.Error(http.StatusNotFound, err.Error())
	}
	defer f.Close()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = static.ContentType(name)
	}
	_ = w.SetHeader(headerContentLength, strconv.FormatInt(f.Size(), 10))
	_ = w.SetHeader(headerContentType, contentType)
	if opts.ContentEncoding != "" {
		_ = w.SetHeader("Content-Encoding", opts.ContentEncoding)
	}
	if opts.MaxAge > 0 {
		_ = w.SetHeader("Cache-Control", fmt.Sprintf("max-age=%d, public", opts.MaxAge))
	} else {
		_ = w.SetHeader("Cache-Control", "no-cache")
	}
	if err := w.writeHead(); err != nil {
		return err
	}
	w.state = stateBodyStreaming

	buf := make([]byte, fileChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.conn.Write(buf[:n]); werr != nil {
				w.state = stateDone
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			w.state = stateDone
			return err
		}
	}
	w.state = stateDone
	return nil
}

// writeHead sends the status line and the collected headers as one write.
func (w *Response) writeHead() error {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/%s %d %s\r\n", w.version, w.code, statusText(w.code))
	for _, h := range w.headers {
		b.WriteString(h.name)
		b.WriteString(": ")
		b.WriteString(h.value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	w.state = stateHeadersSent
	if _, err := io.WriteString(w.conn, b.String()); err != nil {
		w.state = stateDone
		return err
	}
	return nil
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "NA"
}
