// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	color "github.com/fatih/color"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options is what the logger needs from the process configuration.
type Options interface {
	ServiceName() string
	GetVersion() string
	Debug() bool
	LogLevel() slog.Level
	LogFormat() string
	Writers() []io.Writer
	ExtraFields() map[string]string
	OTELExporter() string
	OTELEndpoint() string
}

type Logger struct {
	Slogger *slog.Logger

	provider *sdklog.LoggerProvider
}

// Shutdown flushes the OpenTelemetry pipeline, if any.
func (l *Logger) Shutdown(ctx context.Context) error {
	if l.provider == nil {
		return nil
	}
	return l.provider.Shutdown(ctx)
}

func NewLogger(ctx context.Context, opts Options) (*Logger, error) {
	writers := opts.Writers()
	if len(writers) == 0 {
		return nil, errors.New("no log writer")
	}
	out := writers[0]
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	level := opts.LogLevel()
	handlers := make([]slog.Handler, 0, 2)
	switch opts.LogFormat() {
	case "pretty":
		handlers = append(handlers, NewDebugHandler(out, level))
	case "text":
		handlers = append(handlers, slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	default:
		handlers = append(handlers, slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}

	var provider *sdklog.LoggerProvider
	if exporter := opts.OTELExporter(); exporter != "" && exporter != "none" {
		var err error
		provider, err = newProvider(ctx, opts)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, otelslog.NewHandler(opts.ServiceName(), otelslog.WithLoggerProvider(provider)))
	}

	var h slog.Handler = &MultiHandler{handlers: handlers}
	if len(handlers) == 1 {
		h = handlers[0]
	}

	fields := opts.ExtraFields()
	if len(fields) > 0 {
		attrs := make([]slog.Attr, 0, len(fields))
		for k, v := range fields {
			attrs = append(attrs, slog.String(k, v))
		}
		h = h.WithAttrs(attrs)
	}

	return &Logger{
		Slogger:  slog.New(h),
		provider: provider,
	}, nil
}

func newProvider(ctx context.Context, opts Options) (*sdklog.LoggerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName()),
			semconv.ServiceVersion(opts.GetVersion()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var exporter sdklog.Exporter
	endpoint := opts.OTELEndpoint()
	switch opts.OTELExporter() {
	case "otlp-http":
		var o []otlploghttp.Option
		if endpoint != "" {
			o = append(o, otlploghttp.WithEndpointURL(endpoint))
		}
		exporter, err = otlploghttp.New(ctx, o...)
	case "otlp-grpc":
		var o []otlploggrpc.Option
		if endpoint != "" {
			o = append(o, otlploggrpc.WithEndpointURL(endpoint))
		}
		exporter, err = otlploggrpc.New(ctx, o...)
	default:
		return nil, fmt.Errorf("unknown otel exporter %q", opts.OTELExporter())
	}
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}

type (
	// DebugHandler writes one colored line per record. Meant for humans at a terminal.
	DebugHandler struct {
		out   io.Writer
		level slog.Leveler
		attrs []slog.Attr
		group string
		mut   *sync.Mutex
	}

	MultiHandler struct {
		handlers []slog.Handler
	}
)

var _ slog.Handler = (*DebugHandler)(nil)
var _ slog.Handler = (*MultiHandler)(nil)

func NewDebugHandler(out io.Writer, level slog.Leveler) *DebugHandler {
	return &DebugHandler{out: out, level: level, mut: &sync.Mutex{}}
}

// Handle implements slog.Handler
func (h *DebugHandler) Handle(_ context.Context, r slog.Record) error {
	timeStr := color.New(color.FgHiBlack).Sprint(r.Time.Format("15:04:05"))
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	logEntry := fmt.Sprintf("%s %s %s%s\n",
		timeStr,
		levelColor(r.Level),
		r.Message,
		formatAttributes(attrs),
	)

	h.mut.Lock()
	defer h.mut.Unlock()
	_, err := io.WriteString(h.out, logEntry)
	return err
}

// WithAttrs implements slog.Handler
func (h *DebugHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &DebugHandler{out: h.out, level: h.level, attrs: merged, group: h.group, mut: h.mut}
}

// WithGroup implements slog.Handler
func (h *DebugHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &DebugHandler{out: h.out, level: h.level, attrs: h.attrs, group: group, mut: h.mut}
}

// Enabled implements slog.Handler
func (h *DebugHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.level != nil {
		threshold = h.level.Level()
	}
	return level >= threshold
}

// Enabled implements slog.Handler
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

// WithGroup implements slog.Handler
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

func levelColor(level slog.Level) string {
	var bg, fg color.Attribute
	name := strings.ToUpper(level.String())
	switch {
	case level < slog.LevelDebug:
		bg, fg, name = color.BgHiBlack, color.FgWhite, "TRACE"
	case level < slog.LevelInfo:
		bg, fg = color.BgMagenta, color.FgWhite
	case level < slog.LevelWarn:
		bg, fg = color.BgBlue, color.FgWhite
	case level < slog.LevelError:
		bg, fg = color.BgYellow, color.FgBlack
	default:
		bg, fg = color.BgRed, color.FgWhite
	}

	return color.New(bg, fg, color.Bold).Sprint(" " + name + " ")
}

func formatAttributes(attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, formatAttrValue(attr.Value)))
	}

	return " " + strings.Join(parts, " ")
}

func formatAttrValue(v slog.Value) string {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return fmt.Sprintf("%q", v.String())
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%g", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindGroup:
		parts := make([]string, 0, len(v.Group()))
		for _, a := range v.Group() {
			parts = append(parts, fmt.Sprintf("%s:%s", a.Key, formatAttrValue(a.Value)))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprintf("%v", v.Any())
	}
}
