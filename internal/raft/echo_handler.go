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
	"encoding/json"

	"github.com/firefly-oss/maelnode/internal/transport"
)

type echoReq struct {
	Type string          `json:"type"`
	Echo json.RawMessage `json:"echo"`
}

type echoRes struct {
	Type string          `json:"type"`
	Echo json.RawMessage `json:"echo"`
}

// EchoHandler answers "echo" requests by mirroring the payload back, a
// harness workload used to sanity-check basic connectivity before the
// real linearizable-kv workload runs.
type EchoHandler struct{}

func (EchoHandler) Handle(msg transport.Envelope) (any, error) {
	var req echoReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	return echoRes{Type: "echo_ok", Echo: req.Echo}, nil
}
