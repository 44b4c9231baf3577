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

package jetstreamx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
)

type Connection struct {
	nc *nats.Conn
	js jetstream.JetStream

	drainTimeout time.Duration
}

// Config is the dependency-injected interface required by Connect.
type Config interface {
	Endpoint() string
	NATSMaxReconnects() int
	NATSReconnectWait() time.Duration
	NATSDrainTimeout() time.Duration
	NATSPingInterval() time.Duration
	NATSMaxPingsOut() int
	NATSConnectWait() time.Duration
	// Optional human readable client name; may return empty.
	NATSClientName() string
}

// Connect establishes a connection to the backend. Any failure is a ConnectionError.
func Connect(cfg Config, log *slog.Logger) (*Connection, error) {
	if cfg == nil {
		return nil, api.NewFailure(api.KindConfiguration, "nil connection config")
	}
	if log == nil {
		log = slog.Default()
	}

	clientName := cfg.NATSClientName()
	if clientName == "" {
		clientName = "crossflow"
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.Timeout(cfg.NATSConnectWait()),
		nats.MaxReconnects(cfg.NATSMaxReconnects()),
		nats.ReconnectWait(cfg.NATSReconnectWait()),
		nats.DrainTimeout(cfg.NATSDrainTimeout()),
		nats.PingInterval(cfg.NATSPingInterval()),
		nats.MaxPingsOutstanding(cfg.NATSMaxPingsOut()),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("backend reconnected", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("backend disconnected", "error", err)
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Debug("backend connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.Endpoint(), opts...)
	if err != nil {
		return nil, api.NewFailure(api.KindConnection, fmt.Sprintf("connect to %s: %v", cfg.Endpoint(), err))
	}

	conn, err := Wrap(nc)
	if err != nil {
		return nil, err
	}
	conn.drainTimeout = cfg.NATSDrainTimeout()
	return conn, nil
}

// Wrap upgrades an existing NATS connection with JetStream capabilities.
func Wrap(nc *nats.Conn) (*Connection, error) {
	if nc == nil {
		return nil, api.NewFailure(api.KindConnection, "nil connection provided")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, api.NewFailure(api.KindConnection, fmt.Sprintf("create JetStream context: %v", err))
	}
	return &Connection{nc: nc, js: js}, nil
}

func (c *Connection) Close() {
	if c.nc != nil && !c.nc.IsClosed() {
		c.nc.Close()
	}
}

// Drain lets in-flight handlers finish, then closes the connection.
func (c *Connection) Drain() error {
	if c.nc == nil || c.nc.IsClosed() {
		return nil
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return err
	}
	timeout := c.drainTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for c.nc.IsDraining() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.nc.Close()
	return nil
}

func (c *Connection) JS() jetstream.JetStream { return c.js }

func (c *Connection) NATS() *nats.Conn { return c.nc }

func (c *Connection) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// EnsureKV creates the bucket or brings an existing one to cfg.
func (c *Connection) EnsureKV(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, backendError(fmt.Sprintf("ensure KV %s", cfg.Bucket), err)
	}
	return kv, nil
}

// EnsureStream creates the stream or updates an existing one. The retention policy
// of an existing stream is kept since JetStream refuses to change it.
func (c *Connection) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.Stream(ctx, cfg.Name)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err = c.js.CreateStream(ctx, cfg)
		if errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			// another process won the race
			return c.js.Stream(ctx, cfg.Name)
		}
		if err != nil {
			return nil, backendError(fmt.Sprintf("create stream %s", cfg.Name), err)
		}
		return stream, nil
	case err != nil:
		return nil, backendError(fmt.Sprintf("get stream %s", cfg.Name), err)
	}

	cfg.Retention = stream.CachedInfo().Config.Retention
	updated, err := c.js.UpdateStream(ctx, cfg)
	if err != nil {
		return nil, backendError(fmt.Sprintf("update stream %s", cfg.Name), err)
	}
	return updated, nil
}

// EnsureConsumer creates or updates a durable consumer on the stream.
func (c *Connection) EnsureConsumer(ctx context.Context, stream jetstream.Stream, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	consumer, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, backendError(fmt.Sprintf("ensure consumer %s on %s", cfg.Durable, stream.CachedInfo().Config.Name), err)
	}
	return consumer, nil
}

// PublishJS publishes a message to a JetStream subject and waits for acknowledgement.
func (c *Connection) PublishJS(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	ack, err := c.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		return nil, backendError(fmt.Sprintf("publish to %s", msg.Subject), err)
	}
	return ack, nil
}

// backendError classifies a JetStream failure. Context errors pass through so callers
// can tell cancellation from an unreachable backend.
func backendError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, &api.Failure{Kind: api.KindConnection, Message: err.Error()})
}
