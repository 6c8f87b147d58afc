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
	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/transport"
)

// AppendEntriesHandler implements the follower side of log replication
// and heartbeats.
type AppendEntriesHandler struct {
	Node *Node
}

func (h AppendEntriesHandler) Handle(msg transport.Envelope) (any, error) {
	var req appendEntriesReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	n := h.Node
	n.maybeStepDown(req.Term)

	term := n.CurrentTerm()
	if req.Term < term {
		return appendEntriesRes{Type: "append_entries_res", Term: term, Success: false}, nil
	}

	n.becomeFollower(req.LeaderID)

	if req.PrevLogIndex <= 0 {
		return nil, merr.NewMalformedRequest("prev_log_index must be positive")
	}

	prev, ok := n.raftLog.Get(req.PrevLogIndex)
	if !ok || prev.Term != req.PrevLogTerm {
		return appendEntriesRes{Type: "append_entries_res", Term: term, Success: false}, nil
	}

	n.raftLog.Truncate(req.PrevLogIndex)
	if len(req.Entries) > 0 {
		n.raftLog.Append(req.Entries...)
	}

	if req.LeaderCommit > n.commitIdx() {
		n.commitMu.Lock()
		if req.LeaderCommit > n.commitIndex {
			newCommit := req.LeaderCommit
			if size := n.raftLog.LastIndex(); newCommit > size {
				newCommit = size
			}
			n.commitIndex = newCommit
		}
		n.commitMu.Unlock()
		n.triggerApply()
	}

	return appendEntriesRes{Type: "append_entries_res", Term: term, Success: true}, nil
}
