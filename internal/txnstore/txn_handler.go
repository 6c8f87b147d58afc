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
	"context"
	"encoding/json"

	"github.com/firefly-oss/maelnode/internal/transport"
)

type txnReq struct {
	Type string  `json:"type"`
	Txn  []TxnOp `json:"txn"`
}

type txnRes struct {
	Type string  `json:"type"`
	Txn  []TxnOp `json:"txn"`
}

// TxnHandler answers "txn" requests by running them through Execute
// against the node's Store.
type TxnHandler struct {
	Node *Node
}

func (h TxnHandler) Handle(msg transport.Envelope) (any, error) {
	var req txnReq
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return nil, err
	}
	h.Node.ready()
	completed, err := Execute(context.Background(), h.Node.store, req.Txn)
	if err != nil {
		return nil, err
	}
	return txnRes{Type: "txn_ok", Txn: completed}, nil
}
