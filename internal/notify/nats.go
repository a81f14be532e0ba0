package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DialNATS connects to url and returns a sink publishing under prefix
// together with the connection, which the caller must drain on shutdown.
func DialNATS(url, prefix string, logger *slog.Logger) (NATS, *nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("siteline"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return NATS{}, nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NATS{Conn: conn, Prefix: prefix, Logger: logger}, conn, nil
}
