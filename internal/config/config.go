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
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	env "github.com/caarlos0/env/v11"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
)

// Mode selects the logging flavour of a process.
type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

const (
	DefaultBackendAddress   = "nats.nats.svc.cluster.local:4222"
	DefaultBackendNamespace = "default"
)

// Config holds the complete process configuration
type Config struct {
	Service string        `json:"service_name" env:"APP_NAME" envDefault:"crossflow"`
	Version string        `json:"version"      env:"VERSION"  envDefault:"v0.1.0"`
	Mode    Mode          `json:"mode"         env:"MODE"     envDefault:"debug"`
	Serde   string        `json:"serde"        env:"SERDE"    envDefault:"json"`
	Backend BackendConfig `json:"backend"      envPrefix:"BACKEND_"`
	NATS    NATSConfig    `json:"nats"         envPrefix:"NATS_"`
	Worker  WorkerConfig  `json:"worker"       envPrefix:"WORKER_"`
	Logger  LoggerConfig  `json:"logger"       envPrefix:"LOG_"`
}

// BackendConfig locates the durable-execution backend and the namespace all
// workflows, queues and buckets of this deployment live in.
type BackendConfig struct {
	Address   string `json:"address"   env:"ADDRESS"`
	Namespace string `json:"namespace" env:"NAMESPACE"`
}

// LoadConfig reads the process environment.
func LoadConfig() (*Config, error) {
	return load(env.Options{})
}

// LoadConfigFrom reads the given environment instead of the process one.
func LoadConfigFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := Config{
		Backend: BackendConfig{
			Address:   DefaultBackendAddress,
			Namespace: DefaultBackendNamespace,
		},
		NATS: NATSConfig{
			MaxReconnects: DefaultMaxReconnects,
			ReconnectWait: DefaultReconnectWait,
			DrainTimeout:  DefaultDrainTimeout,
			PingInterval:  DefaultPingInterval,
			MaxPingsOut:   DefaultMaxPingsOut,
			ConnectWait:   DefaultConnectWait,
		},
		Worker: WorkerConfig{
			MaxConcurrentTasks: DefaultMaxConcurrentTasks,
			AckWait:            DefaultAckWait,
			RetryAttempts:      DefaultRetryAttempts,
		},
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, api.NewFailure(api.KindConfiguration, err.Error())
	}
	if cfg.NATS.ClientName == "" {
		cfg.NATS.ClientName = cfg.Service
	}

	return &cfg, nil
}

// Validate rejects values a process cannot start with. The returned error is a
// ConfigurationError.
func (c *Config) Validate() error {
	var errs []error
	if c.Service == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if c.Mode != ModeDebug && c.Mode != ModeRelease {
		errs = append(errs, fmt.Errorf("invalid mode %q", c.Mode))
	}
	if _, err := serde.New(c.Serde); err != nil {
		errs = append(errs, err)
	}
	if !api.ValidToken(c.Backend.Namespace) {
		errs = append(errs, fmt.Errorf("invalid backend namespace %q", c.Backend.Namespace))
	}
	if err := validateAddress(c.Backend.Address); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, c.NATS.validate()...)
	errs = append(errs, c.Worker.validate()...)
	errs = append(errs, c.Logger.validate()...)

	if len(errs) == 0 {
		return nil
	}
	return api.NewFailure(api.KindConfiguration, errors.Join(errs...).Error())
}

func validateAddress(addr string) error {
	if addr == "" {
		return errors.New("backend address is required")
	}
	hostport := addr
	if i := strings.Index(addr, "://"); i >= 0 {
		hostport = addr[i+3:]
	}
	// a comma separated seed list is accepted by the client
	for _, h := range strings.Split(hostport, ",") {
		host, port, err := net.SplitHostPort(strings.TrimSpace(h))
		if err != nil {
			return fmt.Errorf("invalid backend address %q: %w", h, err)
		}
		if host == "" {
			return fmt.Errorf("invalid backend address %q: missing host", h)
		}
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid backend port %q", port)
		}
	}
	return nil
}

// BackendURL is the client URL of the backend. A bare host:port gets the nats scheme.
func (c *Config) BackendURL() string {
	if strings.Contains(c.Backend.Address, "://") {
		return c.Backend.Address
	}
	parts := strings.Split(c.Backend.Address, ",")
	for i, p := range parts {
		parts[i] = "nats://" + strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}

func (c *Config) Namespace() string { return c.Backend.Namespace }

func (c *Config) ServiceName() string {
	return c.Service
}

func (c *Config) GetVersion() string {
	return c.Version
}

func (c *Config) Debug() bool { return c.Mode == ModeDebug }
