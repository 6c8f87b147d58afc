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

package raft

import (
	"context"
	"encoding/json"

	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/transport"
)

// ProxyToLeader forwards a client's request body unchanged to the
// node's currently-known leader, returning its response body verbatim.
// Shared by the Read/Write/CAS handlers exactly as
// original_source/raft/src/message_handlers structures it: one small
// reusable helper rather than duplicated forwarding logic per handler.
func (n *Node) ProxyToLeader(ctx context.Context, msg transport.Envelope) (json.RawMessage, error) {
	leader := n.KnownLeader()
	if leader == "" {
		return nil, merr.NewTemporarilyUnavailable("no known leader")
	}
	resp, ok := n.conn.SendRPC(ctx, leader, json.RawMessage(msg.Body))
	if !ok {
		return nil, merr.NewTemporarilyUnavailable("leader did not respond")
	}
	return resp, nil
}
