package picoserve

import (
	"bufio"
	"io"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// readBufferSize bounds both the per-connection read buffer and the maximum
// length of a request or header line. A line that does not fit fails the
// request instead of growing the buffer.
const readBufferSize = 1024

// Headers that are retained regardless of a route's SaveHeaders set, because
// body framing depends on them.
const (
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"
)

var knownMethods = []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}

// Request is one incoming HTTP request. It is immutable once parsing
// completes and is owned by the connection that produced it.
type Request struct {
	Method      string
	Path        string
	QueryString string

	// Headers holds the retained request headers keyed by canonical name.
	// Only Content-Length, Content-Type and the route's SaveHeaders are
	// retained; everything else is discarded as it is read.
	Headers map[string]string

	// Body is the request body. It is read only when a Content-Length
	// header was retained, and is bounded by the route's MaxBodySize.
	Body []byte

	// PathParams holds the values bound by <name> pattern segments.
	PathParams map[string]string
}

// Query parses the query string. Values are strings; type coercion is the
// handler's business. A malformed query string yields an empty map.
func (r *Request) Query() url.Values {
	values, err := url.ParseQuery(r.QueryString)
	if err != nil {
		return url.Values{}
	}
	return values
}

// Header returns a retained header value, or "" if absent.
func (r *Request) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// readLine reads one CRLF-terminated line (bare LF is tolerated). A line
// longer than the reader's buffer fails with ErrHeaderTooLarge rather than
// growing memory.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return "", ErrHeaderTooLarge
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// readRequestLine parses the first line of the request, e.g.
//
//	GET /something/script?param1=val1 HTTP/1.0
//
// Blank lines before it are skipped.
func (r *Request) readRequestLine(br *bufio.Reader) error {
	var line string
	for line == "" {
		var err error
		line, err = readLine(br)
		if err != nil {
			return err
		}
	}
	frags := strings.Fields(line)
	if len(frags) != 3 {
		return ErrBadRequest
	}
	if !slices.Contains(knownMethods, frags[0]) {
		return ErrBadRequest
	}
	r.Method = frags[0]
	r.Path, r.QueryString, _ = strings.Cut(frags[1], "?")
	return nil
}

// readHeaders consumes the header section up to the empty line, retaining
// only the headers the route saves. Non-saved headers are discarded without
// storing their values.
func (r *Request) readHeaders(br *bufio.Reader, route *Route) error {
	for {
		line, err := readLine(br)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return ErrBadRequest
		}
		name = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		if route.savesHeader(name) {
			r.Headers[name] = strings.TrimSpace(value)
		}
	}
}

// readBody reads a Content-Length body. The route's MaxBodySize is checked
// against the declared length before a single body byte is consumed.
func (r *Request) readBody(br *bufio.Reader, route *Route) error {
	cl := r.Headers[headerContentLength]
	if cl == "" {
		return nil
	}
	size, err := strconv.Atoi(cl)
	if err != nil || size < 0 {
		return ErrBadRequest
	}
	if size > route.maxBodySize {
		return ErrPayloadTooLarge
	}
	if size == 0 {
		return nil
	}
	r.Body = make([]byte, size)
	_, err = io.ReadFull(br, r.Body)
	return err
}
