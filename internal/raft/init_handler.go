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
	"github.com/firefly-oss/maelnode/internal/transport"
)

type initReq struct {
	Type    string   `json:"type"`
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// InitHandler binds cluster identity from the harness's one-time init
// message, then enables elections and client writes.
type InitHandler struct {
	Node *Node
}

func (h InitHandler) Handle(msg transport.Envelope) (any, error) {
	var req initReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	h.Node.Init(req.NodeID, req.NodeIDs)
	return map[string]string{"type": "init_ok"}, nil
}
