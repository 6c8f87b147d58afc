/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package metrics wraps the OpenTelemetry counters and the tracer used
across maelnode's raft replica, transactional store, and RPC transport.
Like internal/logging and internal/config, a *Metrics value is built
once per node and passed by handle rather than read off a package
global. When no SDK is wired into the process (the common case under
the Maelstrom harness, which has no OTLP collector), the otel API's
no-op implementations are used automatically — instruments still work,
they just report nowhere.
*/
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/firefly-oss/maelnode"

// Metrics bundles the counters maelnode's raft and txnstore packages
// increment, plus the tracer used to span outbound RPCs.
type Metrics struct {
	Tracer trace.Tracer

	ElectionsStarted  metric.Int64Counter
	ElectionsWon      metric.Int64Counter
	TermAdvances      metric.Int64Counter
	AppendEntriesSent metric.Int64Counter
	LogEntriesApplied metric.Int64Counter
	RPCsSent          metric.Int64Counter
	RPCTimeouts       metric.Int64Counter
	TxnAttempts       metric.Int64Counter
	TxnConflicts      metric.Int64Counter
	ThunkCacheHits    metric.Int64Counter
	ThunkCacheMisses  metric.Int64Counter
}

// New builds a Metrics bundle from the globally-configured otel
// providers. A binary that never calls otel.SetMeterProvider /
// otel.SetTracerProvider gets working, inert no-op instruments.
func New() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	tracer := otel.Tracer(instrumentationName)

	var err error
	m := &Metrics{Tracer: tracer}

	if m.ElectionsStarted, err = meter.Int64Counter("maelnode.raft.elections_started"); err != nil {
		return nil, err
	}
	if m.ElectionsWon, err = meter.Int64Counter("maelnode.raft.elections_won"); err != nil {
		return nil, err
	}
	if m.TermAdvances, err = meter.Int64Counter("maelnode.raft.term_advances"); err != nil {
		return nil, err
	}
	if m.AppendEntriesSent, err = meter.Int64Counter("maelnode.raft.append_entries_sent"); err != nil {
		return nil, err
	}
	if m.LogEntriesApplied, err = meter.Int64Counter("maelnode.raft.log_entries_applied"); err != nil {
		return nil, err
	}
	if m.RPCsSent, err = meter.Int64Counter("maelnode.transport.rpcs_sent"); err != nil {
		return nil, err
	}
	if m.RPCTimeouts, err = meter.Int64Counter("maelnode.transport.rpc_timeouts"); err != nil {
		return nil, err
	}
	if m.TxnAttempts, err = meter.Int64Counter("maelnode.txnstore.attempts"); err != nil {
		return nil, err
	}
	if m.TxnConflicts, err = meter.Int64Counter("maelnode.txnstore.conflicts"); err != nil {
		return nil, err
	}
	if m.ThunkCacheHits, err = meter.Int64Counter("maelnode.txnstore.cache_hits"); err != nil {
		return nil, err
	}
	if m.ThunkCacheMisses, err = meter.Int64Counter("maelnode.txnstore.cache_misses"); err != nil {
		return nil, err
	}
	return m, nil
}

// Noop returns a Metrics bundle backed by otel's default, unconfigured
// providers (no-op unless the process has called otel.Set*Provider),
// useful for tests that don't want to touch the global otel state.
func Noop() *Metrics {
	m, err := New()
	if err != nil {
		// The otel API's default providers never fail to produce
		// instruments; a non-nil err here means the SDK broke that
		// contract.
		panic(err)
	}
	return m
}

// StartRPCSpan opens a span around a single outbound send_rpc/broadcast_rpc
// call, tagged with the message type and destination node.
func (m *Metrics) StartRPCSpan(ctx context.Context, msgType, dest string) (context.Context, trace.Span) {
	return m.Tracer.Start(ctx, "maelnode.rpc."+msgType, trace.WithAttributes(
		attribute.String("maelnode.msg_type", msgType),
		attribute.String("maelnode.dest", dest),
	))
}
