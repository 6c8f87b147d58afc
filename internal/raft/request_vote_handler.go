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

// RequestVoteHandler implements the vote-granting side of leader
// election.
type RequestVoteHandler struct {
	Node *Node
}

func (h RequestVoteHandler) Handle(msg transport.Envelope) (any, error) {
	var req requestVoteReq
	if err := decodeBody(msg.Body, &req); err != nil {
		return nil, err
	}
	n := h.Node
	n.maybeStepDown(req.Term)

	n.termMu.Lock()
	granted := false
	if req.Term >= n.currentTerm && n.votedFor == "" && logUpToDate(req.LastLogTerm, req.LastLogIndex, n.raftLog) {
		n.votedFor = req.CandidateID
		granted = true
	}
	term := n.currentTerm
	n.termMu.Unlock()

	if granted {
		n.resetElectionDeadline()
	}

	return requestVoteRes{Type: "request_vote_res", Term: term, VoteGranted: granted}, nil
}

// logUpToDate reports whether (remoteTerm, remoteIndex) is at least as
// up to date as this node's log, lexicographically on (term, index).
func logUpToDate(remoteTerm, remoteIndex int, l *Log) bool {
	last := l.Last()
	if remoteTerm != last.Term {
		return remoteTerm > last.Term
	}
	return remoteIndex >= l.LastIndex()
}
