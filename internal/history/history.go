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

// Package history appends workflow events to the namespace history stream and
// reads them back per workflow ID.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/crossflow/api"
	"github.com/ngnhng/crossflow/api/serde"
	jetstreamx "github.com/ngnhng/crossflow/internal/infra/jetstream"
)

type Recorder struct {
	backend *jetstreamx.Backend
	serde   serde.BinarySerde
}

func NewRecorder(b *jetstreamx.Backend, s serde.BinarySerde) *Recorder {
	return &Recorder{backend: b, serde: s}
}

// Record appends ev to the history of workflowID. dedupID makes the append
// idempotent within the stream's duplicate window, so a replayed run does not
// record the same event twice.
func (r *Recorder) Record(ctx context.Context, workflowID, runID, dedupID string, ev api.HistoryEvent) error {
	data, err := r.serde.SerializeBinary(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}

	msg := nats.NewMsg(r.backend.Names.HistorySubject(workflowID))
	msg.Data = data
	msg.Header.Set(api.EventNameHeader, ev.EventName())
	msg.Header.Set(api.RunIDHeader, runID)
	msg.Header.Set(api.SerdeHeader, r.serde.Name())

	var opts []jetstream.PublishOpt
	if dedupID != "" {
		opts = append(opts, jetstream.WithMsgID(dedupID))
	}
	_, err = r.backend.Conn.PublishJS(ctx, msg, opts...)
	return err
}

// Read returns the recorded events of workflowID in append order. A non-empty
// runID keeps only the events of that run.
func Read(ctx context.Context, b *jetstreamx.Backend, workflowID, runID string) ([]api.HistoryEvent, error) {
	cons, err := b.Conn.JS().OrderedConsumer(ctx, b.Names.HistoryStream(), jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{b.Names.HistorySubject(workflowID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("history consumer: %w", err)
	}

	info, err := cons.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("history consumer info: %w", err)
	}

	pending := int(info.NumPending)
	events := make([]api.HistoryEvent, 0, pending)
	for pending > 0 {
		batch, err := cons.Fetch(pending, jetstream.FetchContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		n := 0
		for msg := range batch.Messages() {
			n++
			if runID != "" && msg.Headers().Get(api.RunIDHeader) != runID {
				continue
			}
			ev, err := decode(msg)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		if n == 0 {
			break
		}
		pending -= n
	}
	return events, nil
}

func decode(msg jetstream.Msg) (api.HistoryEvent, error) {
	name := msg.Headers().Get(api.EventNameHeader)
	ev, err := api.NewHistoryEvent(name)
	if err != nil {
		return nil, err
	}
	s, err := serde.New(msg.Headers().Get(api.SerdeHeader))
	if err != nil {
		return nil, err
	}
	if err := s.DeserializeBinary(msg.Data(), ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ev, nil
}

// Names returns the event names of events, handy for assertions and logs.
func Names(events []api.HistoryEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.EventName()
	}
	return out
}
