package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// NATSConnection is a client connection plus the embedded server backing it, if any.
type NATSConnection struct {
	Conn     *nats.Conn
	embedded *natsserver.Server
}

// ConnectNATS connects to url, or starts an embedded JetStream-enabled server
// when url is empty or embedded is set. storeDir holds embedded JetStream data;
// empty uses a temporary directory.
func ConnectNATS(url string, embedded bool, storeDir string, logger *slog.Logger) (*NATSConnection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if url != "" && !embedded {
		logger.Info("Connecting to NATS", "url", url)
		nc, err := nats.Connect(url,
			nats.Name("semplan"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		return &NATSConnection{Conn: nc}, nil
	}

	logger.Info("Starting embedded NATS server")
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start")
	}

	nc, err := nats.Connect(ns.ClientURL(), nats.Name("semplan"))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}
	return &NATSConnection{Conn: nc, embedded: ns}, nil
}

// Close drains the connection and shuts down the embedded server.
func (c *NATSConnection) Close() {
	if c.Conn != nil {
		_ = c.Conn.Drain()
		c.Conn.Close()
	}
	if c.embedded != nil {
		c.embedded.Shutdown()
		c.embedded.WaitForShutdown()
	}
}
