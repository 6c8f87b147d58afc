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

// WriteHandler mirrors ReadHandler's proxy-or-append shape for writes.
type WriteHandler struct {
	Node *Node
}

func (h WriteHandler) Handle(msg transport.Envelope) (any, error) {
	var req writeReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	n := h.Node

	var hdr struct {
		MsgID int `json:"msg_id"`
	}
	decodeBody(msg.Body, &hdr)

	if n.CurrentRole() != Leader {
		resp, err := n.ProxyToLeader(context.Background(), msg)
		if err != nil {
			return nil, err
		}
		_ = n.conn.SendReply(msg.Src, hdr.MsgID, resp)
		return nil, nil
	}

	term := n.CurrentTerm()
	n.raftLog.Append(Entry{Term: term, Op: &Op{
		Kind:      OpWrite,
		Key:       req.Key,
		Value:     req.Value,
		Requester: msg.Src,
		MsgID:     hdr.MsgID,
	}})
	return nil, nil
}

func (h WriteHandler) Defer(msg transport.Envelope) bool { return true }
