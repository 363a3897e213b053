package tnet

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ListenBacklog opens a TCP listening socket with an explicit listen(2)
// backlog. The net package always listens with the system default backlog;
// memory-constrained deployments want the pending-connection queue bounded
// explicitly, so that once the backlog is full the kernel rejects further
// connection attempts instead of queueing them.
//
// Only IPv4 addresses are supported; an empty host listens on all interfaces.
func ListenBacklog(address string, backlog int) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp4", address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}

	sa := &unix.SockaddrInet4{Port: addr.Port}
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp-listener-%s", address))
	defer f.Close() // net.FileListener duplicates the descriptor
	return net.FileListener(f)
}
