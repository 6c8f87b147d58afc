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
	"sync"

	"github.com/firefly-oss/maelnode/internal/config"
	"github.com/firefly-oss/maelnode/internal/kvclient"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/firefly-oss/maelnode/internal/transport"
	"github.com/go-logr/logr"
)

// Node is one transactional-store replica. Unlike raft.Node it carries
// no cluster state of its own: every replica proxies its key/value
// work straight through to the external lin-kv service, so the only
// identity a Node needs is its own node_id (for thunk-id allocation)
// and a conn to talk to lin-kv and reply to clients.
type Node struct {
	conn   *transport.Conn
	cfg    *config.Config
	metric *metrics.Metrics
	log    logr.Logger
	kv     *kvclient.Client

	nodeID      string
	store       *Store
	initialized sync.WaitGroup
	initOnce    sync.Once
}

// NewNode constructs a Node not yet bound to a node_id; Init completes
// setup once the harness's "init" message arrives.
func NewNode(conn *transport.Conn, kv *kvclient.Client, cfg *config.Config, m *metrics.Metrics, log logr.Logger) *Node {
	n := &Node{conn: conn, kv: kv, cfg: cfg, metric: m, log: log}
	n.initialized.Add(1)
	return n
}

// Init binds node identity and builds the transactional Store,
// allocating its thunk cache and id generator against this node_id.
func (n *Node) Init(nodeID string, nodeIDs []string) error {
	var err error
	n.initOnce.Do(func() {
		n.nodeID = nodeID
		n.conn.SetNodeID(nodeID)
		n.store, err = NewStore(n.kv, nodeID, n.cfg.ThunkCacheSize, n.metric, n.log)
		n.initialized.Done()
	})
	return err
}

// ready blocks until Init has completed.
func (n *Node) ready() {
	n.initialized.Wait()
}

func (n *Node) NodeID() string { return n.nodeID }
func (n *Node) Store() *Store  { return n.store }
