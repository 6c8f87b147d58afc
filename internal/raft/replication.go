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
	"sort"
	"time"
)

// replicationLoop runs at a fixed 50ms cadence: for every peer whose
// next_index is behind the log, or whose last heartbeat is stale, send
// an AppendEntries. Per-peer RPCs run
// concurrently so one slow follower never delays the others.
func (n *Node) replicationLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.ReplicationPollInterval)
	defer ticker.Stop()

	lastHeartbeat := make(map[string]time.Time, len(n.peers))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if n.CurrentRole() != Leader {
			continue
		}
		term := n.CurrentTerm()
		logSize := n.raftLog.Size()

		for _, peer := range n.peers {
			n.leaderMu.RLock()
			ni := n.nextIndex[peer]
			n.leaderMu.RUnlock()
			if ni == 0 {
				ni = 1
			}

			stale := time.Since(lastHeartbeat[peer]) > n.cfg.HeartbeatInterval
			if logSize <= ni && !stale {
				continue
			}
			lastHeartbeat[peer] = time.Now()
			go n.replicateTo(ctx, peer, term, ni)
		}

		// A single-node cluster has no peers to ack entries, so
		// replicateTo's success path above never runs. The leader's
		// own log already forms a majority of one; evaluate commit
		// advancement every tick rather than only from a peer reply.
		n.maybeAdvanceCommit(term)
	}
}

func (n *Node) replicateTo(ctx context.Context, peer string, term, ni int) {
	entries := n.raftLog.UpToIndex(ni)
	prevTerm := 0
	if prev, ok := n.raftLog.Get(ni - 1); ok {
		prevTerm = prev.Term
	}

	req := appendEntriesReq{
		Type:         "append_entries",
		Term:         term,
		LeaderID:     n.nodeID,
		PrevLogIndex: ni - 1,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: n.commitIdx(),
	}

	raw, ok := n.conn.SendRPC(ctx, peer, req)
	if !ok {
		return
	}
	var res appendEntriesRes
	if err := decodeBody(raw, &res); err != nil {
		return
	}

	n.maybeStepDown(res.Term)

	n.termMu.RLock()
	stillLeader := n.role == Leader && n.currentTerm == term
	n.termMu.RUnlock()
	if !stillLeader {
		return
	}
	n.resetStepDownDeadline()

	sent := ni + len(entries)
	n.leaderMu.Lock()
	if res.Success {
		if sent > n.nextIndex[peer] {
			n.nextIndex[peer] = sent
		}
		if sent-1 > n.matchIndex[peer] {
			n.matchIndex[peer] = sent - 1
		}
	} else if n.nextIndex[peer] > 1 {
		n.nextIndex[peer]--
	}
	n.leaderMu.Unlock()

	if res.Success {
		n.maybeAdvanceCommit(term)
	}
}

func (n *Node) commitIdx() int {
	n.commitMu.RLock()
	defer n.commitMu.RUnlock()
	return n.commitIndex
}

// maybeAdvanceCommit computes the majority-acked index across match_index
// plus the leader's own last log index, and advances commit_index to it if
// that entry's term matches the leader's current term (the Raft safety
// rule: never commit an entry from a prior term by counting alone —
// only entries from the current term advance the commit point
// directly; earlier-term entries ride along via log-matching).
func (n *Node) maybeAdvanceCommit(term int) {
	n.leaderMu.RLock()
	indices := make([]int, 0, len(n.matchIndex)+1)
	for _, idx := range n.matchIndex {
		indices = append(indices, idx)
	}
	n.leaderMu.RUnlock()
	// Self's effective match index is its own last log index (§9 resolved:
	// the leader implicitly "matches" its own log in full).
	indices = append(indices, n.raftLog.LastIndex())

	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	majorityIdx := indices[n.majority()-1]

	entry, ok := n.raftLog.Get(majorityIdx)
	if !ok || entry.Term != term {
		return
	}

	n.commitMu.Lock()
	if majorityIdx > n.commitIndex {
		n.commitIndex = majorityIdx
	}
	n.commitMu.Unlock()

	n.triggerApply()
}
