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

package txnstore

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/firefly-oss/maelnode/internal/kvclient"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/go-logr/logr"
)

// Store bundles everything a transaction execution needs: the lin-kv
// client, a process-wide bounded cache of already-read thunk bodies
// (distinct from kvclient's own read cache — this one is keyed by
// thunk id and survives across cas-conflict retries and across
// unrelated transactions), and the node-local thunk id generator.
type Store struct {
	Client *kvclient.Client
	log    logr.Logger
	metric *metrics.Metrics
	cache  *ristretto.Cache[string, []byte]
	ids    *idGenerator
}

// NewStore builds a Store with a thunk cache bounded to approximately
// maxEntries compressed values.
func NewStore(client *kvclient.Client, nodeID string, maxEntries int64, m *metrics.Metrics, log logr.Logger) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Store{Client: client, log: log, metric: m, cache: cache, ids: newIDGenerator(nodeID)}, nil
}
