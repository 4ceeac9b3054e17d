package main

import (
	"crypto/tls"

	"github.com/qnet-io/quic/transport"
)

func newConfig() *transport.Config {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
		NextProtos: []string{"quince"},
	}
	return transport.NewConfig(tlsConfig)
}
