package picoserve

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/picoserve/picoserve/static"
	"github.com/stretchr/testify/require"
)

func testResponse(cfg Config) (*Response, *bytes.Buffer) {
	var buf bytes.Buffer
	if cfg.Files == nil {
		cfg.Files = static.Dir(".")
	}
	return newResponse(&buf, cfg), &buf
}

func TestResponseStart(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.SetHeader("X-One", "1"))
	require.NoError(t, w.SetHeader("X-Two", "2"))
	require.NoError(t, w.Start("text/plain"))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "HTTP/1.0 200 OK\r\n"))
	// insertion order is preserved on the wire
	require.Equal(t, "HTTP/1.0 200 OK\r\nX-One: 1\r\nX-Two: 2\r\nContent-Type: text/plain\r\n\r\n", out)

	// the head goes out exactly once
	require.ErrorIs(t, w.Start("text/plain"), ErrInvalidState)
}

func TestResponseHeadersFrozenAfterStart(t *testing.T) {
	w, _ := testResponse(Config{})
	require.NoError(t, w.Start("text/plain"))
	require.ErrorIs(t, w.SetHeader("X-Late", "no"), ErrInvalidState)
	require.ErrorIs(t, w.SetStatus(201), ErrInvalidState)
	require.ErrorIs(t, w.SetVersion("1.1"), ErrInvalidState)
	require.ErrorIs(t, w.Redirect("/elsewhere"), ErrInvalidState)
	require.ErrorIs(t, w.Error(500, ""), ErrInvalidState)
}

func TestResponseSendImplicitStart(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.Send([]byte("<h1>hi</h1>")))
	require.Equal(t, "HTTP/1.0 200 OK\r\nContent-Type: text/html\r\n\r\n<h1>hi</h1>", buf.String())

	require.NoError(t, w.Send([]byte(" more")))
	w.state = stateDone
	require.ErrorIs(t, w.Send([]byte("late")), ErrInvalidState)
}

func TestResponseSetStatus(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.SetStatus(201))
	require.NoError(t, w.Start(""))
	require.True(t, strings.HasPrefix(buf.String(), "HTTP/1.0 201 Created\r\n"))
}

func TestResponseUnknownStatusText(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.SetStatus(599))
	require.NoError(t, w.Start(""))
	require.True(t, strings.HasPrefix(buf.String(), "HTTP/1.0 599 NA\r\n"))
}

func TestResponseRedirect(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.Redirect("/login"))
	require.Equal(t, "HTTP/1.0 302 Found\r\nLocation: /login\r\nContent-Length: 0\r\n\r\n", buf.String())
	require.Equal(t, stateDone, w.state)
}

func TestResponseError(t *testing.T) {
	w, buf := testResponse(Config{})
	require.NoError(t, w.Error(404, "secret detail"))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "HTTP/1.0 404 Not Found\r\n"))
	require.True(t, strings.HasSuffix(out, "\r\n\r\nNot Found"))
	require.NotContains(t, out, "secret detail")
}

func TestResponseErrorDebug(t *testing.T) {
	w, buf := testResponse(Config{Debug: true})
	require.NoError(t, w.Error(500, "stack trace here"))
	require.Contains(t, buf.String(), "Internal Server Error\nstack trace here")
}

func TestSendFile(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("x", fileChunkSize+100) // forces more than one chunk
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.css"), []byte(content), 0o644))

	w, buf := testResponse(Config{Files: static.Dir(dir)})
	require.NoError(t, w.SendFile("data.css", nil))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "HTTP/1.0 200 OK\r\n"))
	require.Contains(t, out, "Content-Length: 612\r\n")
	require.Contains(t, out, "Content-Type: text/css\r\n")
	require.Contains(t, out, "Cache-Control: max-age=2592000, public\r\n")
	require.True(t, strings.HasSuffix(out, content))
}

func TestSendFileNoCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hi"), 0o644))

	w, buf := testResponse(Config{Files: static.Dir(dir)})
	require.NoError(t, w.SendFile("f.txt", &FileOptions{ContentEncoding: "gzip"}))
	require.Contains(t, buf.String(), "Cache-Control: no-cache\r\n")
	require.Contains(t, buf.String(), "Content-Encoding: gzip\r\n")
}

func TestSendFileMissing(t *testing.T) {
	w, buf := testResponse(Config{Files: static.Dir(t.TempDir())})
	// a missing file becomes a 404 response, not an error return
	require.NoError(t, w.SendFile("nope.png", nil))
	require.True(t, strings.HasPrefix(buf.String(), "HTTP/1.0 404 Not Found\r\n"))
	require.Equal(t, stateDone, w.state)
}
