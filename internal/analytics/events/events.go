// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package events publishes pipeline stage transitions to a message broker
// so downstream systems can follow a run without polling the status
// endpoint. Delivery is best-effort: the pipeline never fails because an
// event could not be published.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Producer is a minimal abstraction over a message-broker client.
// Implementations should enable idempotent production; the run id is used as
// the message key so per-run ordering is preserved by the broker.
//
// Note: We intentionally avoid importing a specific broker library.
type Producer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// LoggingProducer is a tiny demo producer that logs the produced message.
// It enables running the service without a real broker. Not for production use.
type LoggingProducer struct{}

func (LoggingProducer) Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if headers == nil {
		headers = map[string]string{}
	}
	fmt.Printf("[events] TOPIC=%s KEY=%s VALUE=%s HEADERS=%v\n", topic, string(key), truncate(string(value), 256), headers)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StageEvent is the serialized payload for one stage transition.
// Message key: RunID (bytes), so a consumer sees one run's events in order.
type StageEvent struct {
	RunID    string `json:"run_id"`
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// Publisher serializes stage events and hands them to the producer.
type Publisher struct {
	producer       Producer
	topic          string
	defaultTimeout time.Duration
}

func NewPublisher(p Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic, defaultTimeout: 10 * time.Second}
}

// StageChanged publishes one transition. The timestamp is stamped here if
// the caller left it zero.
func (p *Publisher) StageChanged(ctx context.Context, ev StageEvent) error {
	if ev.RunID == "" {
		return errors.New("StageEvent.RunID must be set")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && p.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.defaultTimeout)
		defer cancel()
	}
	if ev.TsUnixMs == 0 {
		ev.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stage event: %w", err)
	}
	headers := map[string]string{"content-type": "application/json"}
	if err := p.producer.Produce(ctx, p.topic, []byte(ev.RunID), b, headers); err != nil {
		return fmt.Errorf("produce stage event run=%s stage=%s: %w", ev.RunID, ev.Stage, err)
	}
	return nil
}
