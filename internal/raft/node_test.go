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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/firefly-oss/maelnode/internal/config"
	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/firefly-oss/maelnode/internal/transport"
)

func testNode(t *testing.T, nodeID string, peers []string) (*Node, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.DefaultConfig()
	conn := transport.New(&out, cfg.RPCTimeout, logging.New(io.Discard, "test", logging.INFO))
	m := metrics.Noop()
	n := NewNode(conn, cfg, m, logging.New(io.Discard, "test", logging.INFO))
	all := append([]string{nodeID}, peers...)
	n.Init(nodeID, all)
	return n, &out
}

func TestMajorityCountsSelf(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2", "n3"})
	if got := n.majority(); got != 2 {
		t.Errorf("majority() for 3-node cluster = %d, want 2", got)
	}
}

func TestMajoritySingleNode(t *testing.T) {
	n, _ := testNode(t, "n1", nil)
	if got := n.majority(); got != 1 {
		t.Errorf("majority() for 1-node cluster = %d, want 1", got)
	}
}

func TestAdvanceTermClearsVotedFor(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	n.termMu.Lock()
	n.votedFor = "n2"
	n.termMu.Unlock()

	n.advanceTerm(5)

	n.termMu.RLock()
	defer n.termMu.RUnlock()
	if n.votedFor != "" {
		t.Errorf("advanceTerm should clear votedFor, got %q", n.votedFor)
	}
	if n.currentTerm != 5 {
		t.Errorf("advanceTerm should set currentTerm=5, got %d", n.currentTerm)
	}
	if n.role != Follower {
		t.Errorf("advanceTerm should force Follower role, got %v", n.role)
	}
}

func TestAdvanceTermIgnoresLowerOrEqualTerm(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	n.advanceTerm(5)
	n.termMu.Lock()
	n.votedFor = "n3"
	n.termMu.Unlock()

	n.advanceTerm(5) // equal, should be a no-op
	n.advanceTerm(3) // lower, should be a no-op

	n.termMu.RLock()
	defer n.termMu.RUnlock()
	if n.votedFor != "n3" {
		t.Errorf("advanceTerm with non-higher term should not clear votedFor, got %q", n.votedFor)
	}
}

func TestBecomeFollowerDoesNotClearVotedFor(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	n.termMu.Lock()
	n.votedFor = "n2"
	n.termMu.Unlock()

	n.becomeFollower("n2")

	n.termMu.RLock()
	defer n.termMu.RUnlock()
	if n.votedFor != "n2" {
		t.Errorf("becomeFollower must not clear votedFor (only advanceTerm does), got %q", n.votedFor)
	}
	if n.leader != "n2" {
		t.Errorf("becomeFollower should record leader, got %q", n.leader)
	}
}

func TestSingleNodeClusterElectsItself(t *testing.T) {
	n, _ := testNode(t, "n1", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n.becomeCandidate(ctx)

	if n.CurrentRole() != Leader {
		t.Fatalf("expected single-node cluster to self-elect, got role %v", n.CurrentRole())
	}
}

func TestLogUpToDateLexicographic(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 2})

	if !logUpToDate(2, 2, l) {
		t.Error("equal term+index should be up to date")
	}
	if !logUpToDate(3, 0, l) {
		t.Error("a higher term should always be up to date regardless of index")
	}
	if logUpToDate(1, 99, l) {
		t.Error("a lower term should never be up to date even with a higher index")
	}
	if logUpToDate(2, 1, l) {
		t.Error("same term but lower index should not be up to date")
	}
}

func TestRequestVoteHandlerGrantsOncePerTerm(t *testing.T) {
	n, out := testNode(t, "n1", []string{"n2"})
	h := RequestVoteHandler{Node: n}

	msg := transport.Envelope{
		Src:  "n2",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"request_vote","msg_id":1,"term":1,"candidate_id":"n2","last_log_index":0,"last_log_term":0}`),
	}
	resp, err := h.Handle(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := resp.(requestVoteRes)
	if !res.VoteGranted {
		t.Fatal("expected vote to be granted")
	}
	_ = out

	// A second candidate in the same term should be denied.
	msg2 := transport.Envelope{
		Src:  "n3",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"request_vote","msg_id":2,"term":1,"candidate_id":"n3","last_log_index":0,"last_log_term":0}`),
	}
	resp2, err := h.Handle(msg2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res2 := resp2.(requestVoteRes)
	if res2.VoteGranted {
		t.Error("expected second vote in the same term to be denied")
	}
}

func TestAppendEntriesHandlerRejectsStaleTerm(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	n.advanceTerm(5)

	h := AppendEntriesHandler{Node: n}
	msg := transport.Envelope{
		Src:  "n2",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"append_entries","msg_id":1,"term":1,"leader_id":"n2","prev_log_index":1,"prev_log_term":0,"entries":[],"leader_commit":0}`),
	}
	resp, err := h.Handle(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := resp.(appendEntriesRes)
	if res.Success {
		t.Error("expected AppendEntries from a stale term to fail")
	}
	if res.Term != 5 {
		t.Errorf("expected reply term 5, got %d", res.Term)
	}
}

func TestAppendEntriesHandlerRejectsZeroPrevLogIndex(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	h := AppendEntriesHandler{Node: n}
	msg := transport.Envelope{
		Src:  "n2",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"append_entries","msg_id":1,"term":1,"leader_id":"n2","prev_log_index":0,"prev_log_term":0,"entries":[],"leader_commit":0}`),
	}
	_, err := h.Handle(msg)
	if merr.CodeOf(err) != merr.MalformedRequest {
		t.Errorf("expected MalformedRequest for prev_log_index<=0, got %v", err)
	}
}

func TestAppendEntriesHandlerAppendsAndAdvancesCommit(t *testing.T) {
	n, _ := testNode(t, "n1", []string{"n2"})
	n.advanceTerm(1)
	h := AppendEntriesHandler{Node: n}

	msg := transport.Envelope{
		Src: "n2",
		Dest: "n1",
		Body: json.RawMessage(`{
			"type":"append_entries","msg_id":1,"term":1,"leader_id":"n2",
			"prev_log_index":1,"prev_log_term":0,
			"entries":[{"term":1,"op":"Write:1,42,c1,7"}],
			"leader_commit":0
		}`),
	}
	resp, err := h.Handle(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := resp.(appendEntriesRes)
	if !res.Success {
		t.Fatal("expected append to succeed")
	}
	if n.raftLog.Size() != 2 {
		t.Errorf("expected log size 2 after append, got %d", n.raftLog.Size())
	}
	if n.KnownLeader() != "n2" {
		t.Errorf("expected leader to be recorded as n2, got %q", n.KnownLeader())
	}
}
