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
	"encoding/json"

	"github.com/firefly-oss/maelnode/internal/transport"
)

type initReq struct {
	Type    string   `json:"type"`
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// InitHandler binds node identity and allocates this node's Store.
// The lin-kv root pointer itself is bootstrapped lazily, on first
// access, via CASRoot's create_if_not_exists.
type InitHandler struct {
	Node *Node
}

func (h InitHandler) Handle(msg transport.Envelope) (any, error) {
	var req initReq
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return nil, err
	}
	if err := h.Node.Init(req.NodeID, req.NodeIDs); err != nil {
		return nil, err
	}
	return map[string]string{"type": "init_ok"}, nil
}
