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

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerConfig struct {
	Level          string `json:"level"          env:"LEVEL"          envDefault:"info"`   // trace|debug|info|warn|error
	Format         string `json:"format"         env:"FORMAT"         envDefault:"auto"`   // auto|json|text|pretty
	Output         string `json:"output"         env:"OUTPUT"         envDefault:"stdout"` // stdout|stderr|file|file:/path, comma separated
	FilePath       string `json:"file_path"      env:"FILE_PATH"`
	FileMaxSizeMB  int    `json:"file_max_size"  env:"FILE_MAX_SIZE"  envDefault:"100"`
	FileMaxBackups int    `json:"file_max_backups" env:"FILE_MAX_BACKUPS" envDefault:"3"`
	FileMaxAgeDays int    `json:"file_max_age"   env:"FILE_MAX_AGE"   envDefault:"28"`
	ExtraFieldsRaw string `json:"fields"         env:"FIELDS"` // key1=val1,key2=val2
	OTELExporter   string `json:"otel_exporter"  env:"OTEL_EXPORTER"  envDefault:"none"` // none|otlp-http|otlp-grpc
	OTELEndpoint   string `json:"otel_endpoint"  env:"OTEL_ENDPOINT"`

	files   map[string]io.Writer
	fileMut sync.Mutex
}

func (lc *LoggerConfig) validate() []error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", lc.Level))
	}
	switch strings.ToLower(lc.Format) {
	case "", "auto", "json", "text", "pretty":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", lc.Format))
	}
	switch lc.OTELExporter {
	case "", "none", "otlp-http", "otlp-grpc":
	default:
		errs = append(errs, fmt.Errorf("invalid log otel exporter %q", lc.OTELExporter))
	}
	return errs
}

// Writers returns the configured log outputs.
// LOG_OUTPUT examples:
//
//	stdout
//	stderr
//	file (uses LOG_FILE_PATH)
//	file:/var/log/app.log
//	stdout,file:/tmp/app.log,stderr
//
// Unknown tokens are ignored with a warning. Files are rotated.
func (c *Config) Writers() []io.Writer {
	outputs := strings.TrimSpace(c.Logger.Output)
	if outputs == "" {
		return []io.Writer{os.Stdout}
	}
	parts := strings.Split(outputs, ",")
	writers := make([]io.Writer, 0, len(parts))
	seen := make(map[string]struct{})

	addWriter := func(key string, w io.Writer) {
		if w == nil {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		writers = append(writers, w)
	}

	for _, raw := range parts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "file:") {
			path := raw[len("file:"):]
			addWriter("file:"+path, c.Logger.rotatingFile(path))
			continue
		}
		switch lower {
		case "stdout":
			addWriter("stdout", os.Stdout)
		case "stderr":
			addWriter("stderr", os.Stderr)
		case "file":
			if c.Logger.FilePath == "" {
				slog.Warn("LOG_OUTPUT includes 'file' but LOG_FILE_PATH not set; skipping")
				continue
			}
			addWriter("file:"+c.Logger.FilePath, c.Logger.rotatingFile(c.Logger.FilePath))
		default:
			slog.Warn("unknown log output entry", "entry", raw)
		}
	}

	if len(writers) == 0 {
		return []io.Writer{os.Stdout}
	}
	return writers
}

func (lc *LoggerConfig) rotatingFile(path string) io.Writer {
	if path == "" {
		return nil
	}
	lc.fileMut.Lock()
	defer lc.fileMut.Unlock()
	if w, ok := lc.files[path]; ok {
		return w
	}
	if lc.files == nil {
		lc.files = make(map[string]io.Writer)
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lc.FileMaxSizeMB,
		MaxBackups: lc.FileMaxBackups,
		MaxAge:     lc.FileMaxAgeDays,
		Compress:   true,
	}
	lc.files[path] = w
	return w
}

// ParseExtraFields parses ExtraFieldsRaw into a map.
func (lc *LoggerConfig) ParseExtraFields() map[string]string {
	res := make(map[string]string)
	if lc == nil || lc.ExtraFieldsRaw == "" {
		return res
	}
	for _, p := range strings.Split(lc.ExtraFieldsRaw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k != "" {
			res[k] = strings.TrimSpace(v)
		}
	}
	return res
}

const LevelTrace = slog.Level(-8)

func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Logger.Level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat resolves "auto" against the mode: pretty when debugging, json otherwise.
func (c *Config) LogFormat() string {
	f := strings.ToLower(c.Logger.Format)
	if f == "" || f == "auto" {
		if c.Debug() {
			return "pretty"
		}
		return "json"
	}
	return f
}

func (c *Config) OTELExporter() string           { return c.Logger.OTELExporter }
func (c *Config) OTELEndpoint() string           { return c.Logger.OTELEndpoint }
func (c *Config) ExtraFields() map[string]string { return c.Logger.ParseExtraFields() }
