// Package rpc serves message-pattern handlers over NATS request/reply using
// the packet format of NestJS microservice clients.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/GunarsK-portfolio/auth-rpc-service/internal/rpc"

// HandlerFunc handles the payload of one message. A returned *Error is sent
// to the caller as is; any other error becomes a 500 envelope.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Options configures a Server.
type Options struct {
	// QueueGroup shares subscriptions between replicas. Empty means every
	// replica receives every message.
	QueueGroup string
	// Timeout bounds each handler invocation.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Server dispatches NATS messages to registered handlers.
type Server struct {
	conn     *nats.Conn
	opts     Options
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	subs     []*nats.Subscription
}

// NewServer creates a Server on an established connection.
func NewServer(conn *nats.Conn, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Server{
		conn:     conn,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for pattern. Registrations after Start are ignored
// until the next Start.
func (s *Server) Handle(pattern string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = h
}

// Patterns returns the registered patterns.
func (s *Server) Patterns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	patterns := make([]string, 0, len(s.handlers))
	for p := range s.handlers {
		patterns = append(patterns, p)
	}
	return patterns
}

// Start subscribes every registered pattern.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return errors.New("rpc server has no nats connection")
	}

	for pattern := range s.handlers {
		sub, err := s.conn.QueueSubscribe(pattern, s.opts.QueueGroup, s.serve)
		if err != nil {
			s.unsubscribeLocked()
			return fmt.Errorf("failed to subscribe %s: %w", pattern, err)
		}
		s.subs = append(s.subs, sub)
		s.opts.Logger.Info("subscribed", "pattern", pattern, "queue", s.opts.QueueGroup)
	}

	if err := s.conn.Flush(); err != nil {
		s.unsubscribeLocked()
		return fmt.Errorf("failed to flush subscriptions: %w", err)
	}
	return nil
}

// Drain unsubscribes every pattern once its pending messages are handled.
func (s *Server) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	s.subs = nil
	return errors.Join(errs...)
}

func (s *Server) unsubscribeLocked() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Server) serve(msg *nats.Msg) {
	reply := s.Dispatch(context.Background(), msg.Subject, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.opts.Logger.Error("failed to send reply", "pattern", msg.Subject, "error", err)
	}
}

// Dispatch runs the handler for pattern against body and returns the
// encoded reply packet.
func (s *Server) Dispatch(ctx context.Context, pattern string, body []byte) []byte {
	start := time.Now()

	ctx, span := s.opts.Tracer.Start(ctx, "rpc."+pattern,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", pattern),
		),
	)
	defer span.End()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req, result, err := s.invoke(ctx, pattern, body)

	status := http.StatusOK
	var rpcErr *Error
	if err != nil {
		rpcErr = AsError(err)
		status = rpcErr.Status
		result = nil

		span.SetStatus(codes.Error, rpcErr.Message)
		if status >= http.StatusInternalServerError {
			span.RecordError(err)
			s.opts.Logger.ErrorContext(ctx, "rpc handler failed", "pattern", pattern, "status", status, "error", err)
		} else {
			s.opts.Logger.WarnContext(ctx, "rpc request rejected", "pattern", pattern, "status", status, "message", rpcErr.Message)
		}
	}
	span.SetAttributes(attribute.Int("rpc.status", status))
	s.opts.Metrics.observe(pattern, status, time.Since(start))

	out, encErr := encodeResponse(req.ID, result, rpcErr)
	if encErr != nil {
		s.opts.Logger.ErrorContext(ctx, "failed to encode reply", "pattern", pattern, "error", encErr)
		out, _ = encodeResponse(req.ID, nil, NewError(http.StatusInternalServerError, InternalErrorMessage))
	}
	return out
}

func (s *Server) invoke(ctx context.Context, pattern string, body []byte) (req Request, result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	s.mu.Lock()
	h, ok := s.handlers[pattern]
	s.mu.Unlock()
	if !ok {
		return req, nil, NewError(http.StatusNotFound, fmt.Sprintf("There is no matching message handler defined in the remote service: %s", pattern))
	}

	// Bodies that are not a packet or an object go to the handler untouched
	// so it can reject them with its own envelope.
	req, err = DecodeRequest(body)
	if err != nil {
		req = Request{Data: json.RawMessage(body)}
	}

	result, err = h(ctx, req.Data)
	return req, result, err
}
