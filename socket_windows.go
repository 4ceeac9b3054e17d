//go:build windows

package quic

import "net"

// listenUDP opens a UDP socket without the unix-only SO_REUSEPORT/buffer
// tuning in socket_unix.go.
func listenUDP(network, addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP(network, laddr)
}
