// Command h3dispatch runs the HTTP/3 connection dispatcher against a real
// QUIC listener. It is a demonstration entrypoint, not a production
// server: the Application it wires (echoApplication) does nothing beyond
// proving the dispatcher accepts, starts, and drains streams correctly —
// request routing, body framing, and QPACK are all out of scope (spec.md
// §1) and live in whatever Application a real deployment supplies.
//
// Adapted from cmd/server/main.go's bootstrap sequence (flag -> config ->
// logger -> serve), trimmed of the HTTP/1.1+2 router/handler wiring that
// has no place in an HTTP/3 connection dispatcher, and with a QUIC
// listener loop in place of the teacher's net.Listener Accept loop.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/quic-go/quic-go"

	"example.com/h3dispatch/internal/config"
	"example.com/h3dispatch/internal/h3"
	"example.com/h3dispatch/internal/logger"
	"example.com/h3dispatch/internal/testutil"
	"example.com/h3dispatch/internal/transport/quicx"
)

var (
	configFilePath string
	listenAddr     string
)

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the connection config file (JSON or TOML)")
	flag.StringVar(&listenAddr, "listen", "localhost:4433", "UDP address to listen on")
	flag.Parse()

	cfg := config.DefaultConnectionConfig()
	if configFilePath != "" {
		absConfigPath, err := filepath.Abs(configFilePath)
		if err != nil {
			log.Fatalf("resolving config path %s: %v", configFilePath, err)
		}
		loaded, err := config.LoadConnectionConfig(absConfigPath)
		if err != nil {
			log.Fatalf("loading config from %s: %v", absConfigPath, err)
		}
		cfg = loaded
	}

	connLogger, err := logger.NewConnectionLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer connLogger.CloseLogFiles()

	tlsConf, err := devTLSConfig()
	if err != nil {
		log.Fatalf("building TLS config: %v", err)
	}

	ln, err := quic.ListenAddr(listenAddr, tlsConf, &quic.Config{})
	if err != nil {
		log.Fatalf("listening on %s: %v", listenAddr, err)
	}
	defer ln.Close()

	dispatcherConfig := h3.Config{
		HeaderTableSize:           cfg.ServerSettings.HeaderTableSize,
		MaxRequestHeaderFieldSize: cfg.ServerSettings.MaxRequestHeaderFieldSize,
		RequestHeadersTimeout:     cfg.RequestHeadersTimeoutDuration(),
		HeartbeatInterval:         cfg.HeartbeatIntervalDuration(),
	}

	fmt.Fprintf(os.Stdout, "h3dispatch listening on %s\n", listenAddr)

	var connID uint64
	for {
		qconn, err := ln.Accept(context.Background())
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		connID++
		id := fmt.Sprintf("conn-%d", connID)

		dispatcher := h3.NewConnection(id, quicx.New(qconn), dispatcherConfig, connLogger)
		go func() {
			if err := dispatcher.Run(echoApplication{}); err != nil {
				connLogger.Http3ConnectionError(id, err)
			}
		}()
	}
}

// echoApplication marks every accepted request stream started immediately
// and copies everything the peer sends back to them, verbatim. It exists
// only so Connection.Run has something to dispatch to; see the package
// doc comment.
type echoApplication struct{}

func (echoApplication) ServeRequest(ctx context.Context, stream h3.RequestStream) {
	stream.MarkStarted()
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := stream.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// devTLSConfig builds a throwaway self-signed certificate for local
// testing, reusing internal/testutil's generator (kept verbatim from the
// teacher's test fixture per DESIGN.md) rather than requiring an operator
// to supply one just to exercise the dispatcher.
func devTLSConfig() (*tls.Config, error) {
	certPEM, keyPEM, err := testutil.GenerateSelfSignedCertKeyPEM("localhost")
	if err != nil {
		return nil, fmt.Errorf("generating self-signed cert: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("loading self-signed cert: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h3-demo"},
	}, nil
}
