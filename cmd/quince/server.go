package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/qnet-io/quic"
	"github.com/qnet-io/quic/transport"
)

func serverCommand(args []string) error {
	cmd := flag.NewFlagSet("server", flag.ExitOnError)
	listenAddr := cmd.String("listen", "0.0.0.0:4433", "listen on the given IP:port")
	certFile := cmd.String("cert", "", "TLS certificate file (PEM)")
	keyFile := cmd.String("key", "", "TLS private key file (PEM)")
	logLevel := cmd.Int("v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	cmd.Parse(args)

	if *certFile == "" || *keyFile == "" {
		fmt.Fprintln(cmd.Output(), "Usage: quince server -cert <file> -key <file> [options]")
		cmd.PrintDefaults()
		return nil
	}
	cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
	if err != nil {
		return err
	}
	config := newConfig()
	config.TLS.Certificates = []tls.Certificate{cert}

	handler := &serverHandler{}
	server := quic.NewServer(config)
	server.SetHandler(handler)
	server.SetLogger(*logLevel, os.Stdout)
	if err := server.ListenAndServe(*listenAddr); err != nil {
		return err
	}
	log.Printf("listening on %s", *listenAddr)
	select {}
}

type serverHandler struct{}

func (s *serverHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		log.Printf("%s connection event: %v", c.RemoteAddr(), e.Type)
		switch e.Type {
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st == nil {
				continue
			}
			buf := make([]byte, 4096)
			n, _ := st.Read(buf)
			log.Printf("stream %d received:\n%s", e.StreamID, buf[:n])
			_, _ = st.Write([]byte("HTTP/0.9 200 OK\r\n"))
			_ = st.Close()
		}
	}
}
