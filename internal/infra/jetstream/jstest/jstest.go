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

// Package jstest runs an embedded JetStream server for tests.
package jstest

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ngnhng/crossflow/api"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
)

// RunServer starts a JetStream enabled server on a random port. It is shut down
// when the test ends.
func RunServer(t testing.TB) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

// Connect opens a new client connection to ns.
func Connect(t testing.TB, ns *server.Server) *jetstreamx.Connection {
	t.Helper()

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn, err := jetstreamx.Wrap(nc)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

// Backend provisions the given namespace on ns over a fresh connection.
func Backend(t testing.TB, ns *server.Server, namespace string) *jetstreamx.Backend {
	t.Helper()

	names, err := api.NewNames(namespace)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := jetstreamx.Provision(ctx, Connect(t, ns), names)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	return b
}
