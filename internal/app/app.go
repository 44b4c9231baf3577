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

// Package app is the process bootstrap shared by the worker and trigger binaries.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ngnhng/crossflow/api/serde"
	"github.com/ngnhng/crossflow/internal/config"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
	"github.com/ngnhng/crossflow/internal/logger"
	"github.com/ngnhng/crossflow/sdk/client"
)

// Process is everything a binary needs once bootstrapped.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	Conn   *jetstreamx.Connection
	Client client.Client
}

// RunFunc is the body of a binary. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context, p *Process) error

// Bootstrap loads the configuration from the environment and connects.
func Bootstrap(ctx context.Context, name string) (*Process, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return BootstrapFrom(ctx, name, cfg)
}

// BootstrapFrom validates cfg, builds the logger, connects to the backend and
// provisions the namespace. Configuration and connection problems come back as
// ConfigurationError and ConnectionError.
func BootstrapFrom(ctx context.Context, name string, cfg *config.Config) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := serde.New(cfg.Serde)
	if err != nil {
		return nil, err
	}

	lg, err := logger.NewLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log := lg.Slogger.With("process", name)
	slog.SetDefault(log)

	conn, err := jetstreamx.Connect(cfg, log)
	if err != nil {
		_ = lg.Shutdown(ctx)
		return nil, err
	}

	c, err := client.NewClient(ctx, &client.Options{
		Namespace: cfg.Namespace(),
		Conn:      conn.NATS(),
		Serde:     s,
		Logger:    log,
	})
	if err != nil {
		conn.Close()
		_ = lg.Shutdown(ctx)
		return nil, err
	}

	log.Info("process bootstrapped",
		"backend", cfg.BackendURL(),
		"namespace", cfg.Namespace(),
		"serde", s.Name(),
		"version", cfg.GetVersion())

	return &Process{Name: name, Config: cfg, Logger: lg, Conn: conn, Client: c}, nil
}

// Close drains the connection and flushes the log exporter.
func (p *Process) Close() {
	if err := p.Conn.Drain(); err != nil {
		slog.Warn("failed to drain connection", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Logger.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down logger provider", "error", err)
	}
}

// Run bootstraps the process and runs fn until it returns or the process
// receives SIGINT or SIGTERM. On a signal, fn's context is cancelled and Run
// waits for fn to return.
func Run(ctx context.Context, name string, fn RunFunc) error {
	p, err := Bootstrap(ctx, name)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.run(ctx, fn)
}

func (p *Process) run(ctx context.Context, fn RunFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx, p)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Main runs fn as the whole program and exits with status 1 when it fails.
func Main(name string, fn RunFunc) {
	if err := Run(context.Background(), name, fn); err != nil {
		slog.Error(name+" exited with error", "error", err)
		os.Exit(1)
	}
}
