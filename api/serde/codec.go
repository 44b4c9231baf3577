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

package serde

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ BinarySerde = (*JsonSerde)(nil)
	_ BinarySerde = (*MsgpackSerde)(nil)
)

// JsonSerde is the default codec. Records written with it can be read with
// any NATS tooling.
type JsonSerde struct{}

func (*JsonSerde) Name() string { return JSON }

func (*JsonSerde) SerializeBinary(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, codecError(JSON, "encode", value, err)
	}
	return data, nil
}

func (*JsonSerde) DeserializeBinary(data []byte, valuePtr any) error {
	return codecError(JSON, "decode", valuePtr, json.Unmarshal(data, valuePtr))
}

// MsgpackSerde encodes with MessagePack. Struct fields are keyed by their
// msgpack tags and integers use the smallest encoding that fits, so attempts
// and sequence numbers cost a single byte.
type MsgpackSerde struct{}

func (*MsgpackSerde) Name() string { return Msgpack }

func (*MsgpackSerde) SerializeBinary(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(value); err != nil {
		return nil, codecError(Msgpack, "encode", value, err)
	}
	return buf.Bytes(), nil
}

func (*MsgpackSerde) DeserializeBinary(data []byte, valuePtr any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	return codecError(Msgpack, "decode", valuePtr, dec.Decode(valuePtr))
}

func codecError(codec, op string, v any, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s %T: %w", codec, op, v, err)
}
