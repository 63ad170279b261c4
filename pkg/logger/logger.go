// Package logger is a thin zerolog wrapper whose request-scoped fields ride
// along in context.Context.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/pos-backend/pkg/env"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
}

type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type fieldsKey struct{}

// fields is copied on every With call, so a derived context never mutates
// its parent's fields.
type fields map[string]any

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	// LOG_FORMAT=console is for local runs only
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if opts.ServiceName != "" {
		base = base.With().Str("service", opts.ServiceName).Logger()
	}
	return &Logger{base: base, warnStack: opts.WarnStack}
}

func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// ParseLevel falls back to info for blank or unknown values.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func contextFields(ctx context.Context) fields {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func (l *Logger) WithFields(ctx context.Context, add map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := contextFields(ctx)
	merged := make(fields, len(parent)+len(add))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range add {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

// WithActor tags every later entry with the authenticated register operator.
// locationID may be blank.
func (l *Logger) WithActor(ctx context.Context, userID, role, locationID string) context.Context {
	add := map[string]any{"user_id": userID, "actor_role": role}
	if locationID != "" {
		add["location_id"] = locationID
	}
	return l.WithFields(ctx, add)
}

func (l *Logger) emit(ctx context.Context, event *zerolog.Event, msg string) {
	if f := contextFields(ctx); len(f) > 0 {
		event = event.Fields(map[string]any(f))
	}
	event.Msg(msg)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.emit(ctx, l.base.Debug(), msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.emit(ctx, l.base.Info(), msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.base.Warn()
	if l.warnStack && event.Enabled() {
		event = event.Str("stack", stack())
	}
	l.emit(ctx, event, msg)
}

// Error always carries a stack trace.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.base.Error()
	if !event.Enabled() {
		return
	}
	if err != nil {
		event = event.Err(err)
	}
	l.emit(ctx, event.Str("stack", stack()), msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
