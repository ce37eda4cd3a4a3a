package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// TraceIDMiddleware propagates the trace id from message metadata into the
// handler context, minting one when the producer did not send any.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get("trace_id")
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set("trace_id", traceID)
		}
		msg.SetContext(context.WithValue(msg.Context(), traceIDKey, traceID))
		return h(msg)
	}
}

// LoggingMiddleware logs every handled message with latency and outcome.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("bus message handled",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get("trace_id"),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      2.0,
	}
}
