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
Package txnstore implements multi-key serializable transactions over
lists-of-ints, built entirely on the single-key read/write/cas primitives
internal/kvclient exposes for the external "lin-kv" service.

Every value lin-kv stores is a content-addressed thunk: a fresh id of
the form "{node_id}-{local_counter}" naming an immutable JSON value.
Thunks either already exist in lin-kv (saved=true) or are local
proposals awaiting a write (saved=false); once saved, saved latches
true and is never unset. A mutable "root" key points at the current
thunk id for the whole key/value map, and transactions commit by
compare-and-swap on that one pointer.
*/
package txnstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/golang/snappy"
)

// Thunk is a content-addressed, lazily-materialized handle to a JSON
// value stored under its ID in lin-kv. A freshly-allocated thunk holds
// its value locally and is not yet saved.
type Thunk struct {
	ID string

	mu     sync.Mutex
	cached json.RawMessage
	saved  bool
}

// NewLocalThunk wraps a value that has not yet been written to lin-kv.
func NewLocalThunk(id string, value json.RawMessage) *Thunk {
	return &Thunk{ID: id, cached: value, saved: false}
}

// NewSavedThunk wraps a thunk id already known to exist in lin-kv,
// without materializing its value (a later Value call fetches it).
func NewSavedThunk(id string) *Thunk {
	return &Thunk{ID: id, saved: true}
}

// Value returns the thunk's JSON value. It checks the in-struct cache,
// then the store's process-wide snappy-compressed thunk cache, before
// falling through to a lin-kv read — each step memoizing into the
// faster layer above it.
func (t *Thunk) Value(ctx context.Context, s *Store) (json.RawMessage, error) {
	t.mu.Lock()
	if t.cached != nil {
		v := t.cached
		t.mu.Unlock()
		return v, nil
	}
	t.mu.Unlock()

	if compressed, ok := s.cache.Get(t.ID); ok {
		s.metric.ThunkCacheHits.Add(ctx, 1)
		v, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.cached = v
		t.mu.Unlock()
		return v, nil
	}
	s.metric.ThunkCacheMisses.Add(ctx, 1)

	v, err := s.Client.Read(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(t.ID, snappy.Encode(nil, v), 1)
	t.mu.Lock()
	t.cached = v
	t.mu.Unlock()
	return v, nil
}

// Save writes the thunk's value to lin-kv if it hasn't been already.
// A write that doesn't come back write_ok fails with merr.Abort.
func (t *Thunk) Save(ctx context.Context, s *Store) error {
	t.mu.Lock()
	if t.saved {
		t.mu.Unlock()
		return nil
	}
	value := t.cached
	t.mu.Unlock()

	if err := s.Client.Write(ctx, t.ID, value); err != nil {
		return merr.NewAbort(fmt.Sprintf("save thunk %s: %v", t.ID, err))
	}
	s.cache.Set(t.ID, snappy.Encode(nil, value), 1)
	t.mu.Lock()
	t.saved = true
	t.mu.Unlock()
	return nil
}

// idGenerator allocates thunk ids of the form "{node_id}-{counter}",
// matching the format every lin-kv value is keyed by.
type idGenerator struct {
	nodeID  string
	counter atomic.Int64
}

func newIDGenerator(nodeID string) *idGenerator {
	return &idGenerator{nodeID: nodeID}
}

func (g *idGenerator) next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%d", g.nodeID, n)
}
