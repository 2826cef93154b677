package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// InitStructured reconfigures the operational logger to write to stderr.
// format: "text" (default) or "json"; level: see ParseLevel.
func InitStructured(format, level string) error {
	return Init(os.Stderr, format, level)
}

// Init reconfigures the operational logger to write to w.
func Init(w io.Writer, format, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	opLogger.Store(slog.New(handler))
	return nil
}

// OpWithRequest returns the operational logger with the request id attached.
func OpWithRequest(requestID string) *slog.Logger {
	l := opLogger.Load()
	if requestID == "" {
		return l
	}
	return l.With("request_id", requestID)
}
