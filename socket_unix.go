//go:build !windows

package quic

import (
	"net"
	"runtime"

	"golang.org/x/sys/unix"
)

// listenUDP opens a UDP socket for addr, tuning it with raw socket options
// this package cares about: a larger receive/send buffer for short bursts of
// coalesced packets, and (on Linux) SO_REUSEPORT so a Server can be
// scaled across one listener per CPU without a shared-accept bottleneck.
func listenUDP(network, addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	if err := tuneSocket(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// tuneSocket applies platform socket options via the raw connection,
// keeping net.UDPConn as the read/write surface everywhere else.
func tuneSocket(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		// A larger socket buffer absorbs bursts of coalesced Initial +
		// Handshake packets without kernel-level drops under load.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, 1<<20)
		if runtime.GOOS == "linux" {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	})
	if err != nil {
		return err
	}
	// SO_REUSEPORT is an optimization; ignore failures (e.g. in containers
	// with a restrictive seccomp profile).
	_ = sockErr
	return nil
}
