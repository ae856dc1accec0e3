// Package nats opens the message bus connection used by the auth service.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials the given servers and keeps reconnecting for the life of
// the process.
func Connect(servers []string, name string, logger *slog.Logger) (*nats.Conn, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no nats servers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(strings.Join(servers, ","),
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", "subject", subject, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return conn, nil
}

// HealthCheck reports an error unless conn is connected.
func HealthCheck(conn *nats.Conn) error {
	if conn == nil {
		return fmt.Errorf("nats connection not initialized")
	}
	if status := conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

// Drain flushes pending replies and closes conn, waiting until the close
// completes or ctx is done. It replaces any closed handler set on conn.
func Drain(ctx context.Context, conn *nats.Conn) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}

	closed := make(chan struct{})
	var once sync.Once
	conn.SetClosedHandler(func(*nats.Conn) {
		once.Do(func() { close(closed) })
	})
	if conn.IsClosed() {
		return nil
	}

	if err := conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}

	select {
	case <-closed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("nats drain did not finish: %w", ctx.Err())
	}
}
