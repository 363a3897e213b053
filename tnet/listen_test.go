package tnet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenNoPrefix(t *testing.T) {
	l, err := Listen("localhost:")
	require.NoError(t, err)
	require.Equal(t, "tcp", l.Addr().Network())
	require.Regexp(t, `^127\.0\.0\.1:\d+$`, l.Addr().String())
	require.NoError(t, l.Close())
}

func TestListenTCP(t *testing.T) {
	l, err := Listen("tcp:localhost:")
	require.NoError(t, err)
	require.Equal(t, "tcp", l.Addr().Network())
	require.Regexp(t, `^127\.0\.0\.1:\d+$`, l.Addr().String())
	require.NoError(t, l.Close())
}

func TestListenUnix(t *testing.T) {
	path := t.TempDir() + "/test.sock"
	l, err := Listen("unix:" + path)
	require.NoError(t, err)
	require.Equal(t, "unix", l.Addr().Network())
	require.Equal(t, path, l.Addr().String())
	require.NoError(t, l.Close())
}

func TestListenBacklog(t *testing.T) {
	l, err := ListenBacklog("127.0.0.1:0", 2)
	require.NoError(t, err)
	defer l.Close()
	require.Equal(t, "tcp", l.Addr().Network())

	// the listener must actually accept connections
	done := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
		done <- err
	}()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, <-done)
}
