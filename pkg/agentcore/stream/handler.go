package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/randalmurphal/agentcore/pkg/agentcore/event"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 5 * time.Second

type handlerConfig struct {
	logger         *slog.Logger
	buffer         int
	writeTimeout   time.Duration
	originPatterns []string
}

// Option configures Handler.
type Option func(*handlerConfig)

// WithLogger sets the logger for connection lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithBufferSize sets the per-connection queue length.
func WithBufferSize(n int) Option {
	return func(c *handlerConfig) {
		c.buffer = n
	}
}

// WithWriteTimeout bounds each frame write. Non-positive values are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *handlerConfig) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin connections from hosts matching
// the patterns (see websocket.AcceptOptions).
func WithOriginPatterns(patterns ...string) Option {
	return func(c *handlerConfig) {
		c.originPatterns = append(c.originPatterns, patterns...)
	}
}

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// Handler returns an http.Handler that upgrades to a websocket and writes
// every emitted event as a JSON text frame. The optional query parameter
// types (comma separated) limits which event types are sent.
//
// Events are only forwarded when they pass through Emit; Publish alone does
// not reach streams.
func Handler(bus *event.Bus, opts ...Option) http.Handler {
	cfg := handlerConfig{
		logger:       slog.Default(),
		buffer:       DefaultBufferSize,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := splitComma(r.URL.Query().Get("types"))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.originPatterns,
		})
		if err != nil {
			cfg.logger.Debug("stream accept failed", slog.String("error", err.Error()))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closed")

		// The stream is write-only; CloseRead handles pings and cancels ctx
		// when the client goes away.
		ctx := conn.CloseRead(r.Context())

		sub := Subscribe(bus, types, cfg.buffer)
		defer sub.Close()

		cfg.logger.Debug("stream opened", slog.Any("types", sub.Types()))
		err = streamEvents(ctx, sub.Events(), conn, cfg.writeTimeout)
		cfg.logger.Debug("stream closed",
			slog.Int64("dropped", sub.Dropped()),
			slog.Any("error", err),
		)
		if err != nil && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
			return
		}
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	})
}

func streamEvents(ctx context.Context, events <-chan event.Event, writer wsWriter, timeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err = writer.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
