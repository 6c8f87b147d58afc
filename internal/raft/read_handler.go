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

	"github.com/firefly-oss/maelnode/internal/transport"
)

// ReadHandler never answers synchronously from the state machine: a
// non-leader proxies to the known leader and relays its response; a
// leader appends a Read op and lets the apply step answer once it
// commits. Handle always either sends the reply itself
// (proxy path) or leaves it to the apply pump, so it reports itself as
// a DeferredHandler unconditionally — see Defer below.
type ReadHandler struct {
	Node *Node
}

func (h ReadHandler) Handle(msg transport.Envelope) (any, error) {
	var req readReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	n := h.Node

	if n.CurrentRole() != Leader {
		resp, err := n.ProxyToLeader(context.Background(), msg)
		if err != nil {
			return nil, err
		}
		var hdr struct {
			MsgID int `json:"msg_id"`
		}
		decodeBody(msg.Body, &hdr)
		_ = n.conn.SendReply(msg.Src, hdr.MsgID, resp)
		return nil, nil
	}

	var hdr struct {
		MsgID int `json:"msg_id"`
	}
	decodeBody(msg.Body, &hdr)
	term := n.CurrentTerm()
	n.raftLog.Append(Entry{Term: term, Op: &Op{
		Kind:      OpRead,
		Key:       req.Key,
		Requester: msg.Src,
		MsgID:     hdr.MsgID,
	}})
	return nil, nil
}

// Defer always reports true: Handle has already either sent the reply
// itself (proxy path) or deferred it to the apply pump (leader path).
func (h ReadHandler) Defer(msg transport.Envelope) bool { return true }
