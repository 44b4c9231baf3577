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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	format string
	level  slog.Level
	out    io.Writer
	fields map[string]string
}

func (o testOptions) ServiceName() string            { return "crossflow-test" }
func (o testOptions) GetVersion() string             { return "v0.0.0" }
func (o testOptions) Debug() bool                    { return o.format == "pretty" }
func (o testOptions) LogLevel() slog.Level           { return o.level }
func (o testOptions) LogFormat() string              { return o.format }
func (o testOptions) Writers() []io.Writer           { return []io.Writer{o.out} }
func (o testOptions) ExtraFields() map[string]string { return o.fields }
func (o testOptions) OTELExporter() string           { return "none" }
func (o testOptions) OTELEndpoint() string           { return "" }

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(context.Background(), testOptions{
		format: "json",
		level:  slog.LevelInfo,
		out:    &buf,
		fields: map[string]string{"pool": "go"},
	})
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	l.Slogger.Debug("hidden")
	l.Slogger.Info("dispatched", "activity", "ProcessGo")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "dispatched", rec["msg"])
	require.Equal(t, "ProcessGo", rec["activity"])
	require.Equal(t, "go", rec["pool"])
}

func TestDebugHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	log := slog.New(NewDebugHandler(&buf, slog.LevelDebug)).
		With("component", "worker").
		WithGroup("task")

	log.Debug("received", "id", "r.1.1", "attempt", 1)
	log.Log(context.Background(), slog.Level(-8), "trace is below debug")

	out := buf.String()
	require.Contains(t, out, " DEBUG  received")
	require.Contains(t, out, `component="worker"`)
	require.Contains(t, out, `task.id="r.1.1"`)
	require.Contains(t, out, "task.attempt=1")
	require.NotContains(t, out, "trace is below debug")
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &MultiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	log := slog.New(h)

	require.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	log.Info("only a")
	log.Error("both")

	require.Contains(t, a.String(), "only a")
	require.Contains(t, a.String(), "both")
	require.NotContains(t, b.String(), "only a")
	require.Contains(t, b.String(), "both")
}
