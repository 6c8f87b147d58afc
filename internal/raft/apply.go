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
	"time"

	"github.com/firefly-oss/maelnode/internal/merr"
)

// triggerApply is a non-blocking hint: maybeAdvanceCommit calls it
// after moving commit_index so the apply pump doesn't have to wait out
// a full polling tick.
func (n *Node) triggerApply() {
	select {
	case n.applyCh() <- struct{}{}:
	default:
	}
}

// applyCh lazily allocates the wake-up channel; Node's zero value has
// no channel so NewNode doesn't need to special-case it.
func (n *Node) applyCh() chan struct{} {
	n.applyChOnce.Do(func() {
		n.applyChVal = make(chan struct{}, 1)
	})
	return n.applyChVal
}

// applyLoop walks last_applied+1..commit_index on every tick or wake-up
// hint, applying each entry's op deterministically to the KV state
// machine. A replica that is Leader when the pass starts synthesizes a
// client reply for each entry it applies, whatever term the entry came
// from; followers silently advance last_applied.
func (n *Node) applyLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.ApplyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-n.applyCh():
		}
		n.applyPending()
	}
}

func (n *Node) applyPending() {
	n.applyMu.Lock()
	defer n.applyMu.Unlock()

	commit := n.commitIdx()
	isLeader := n.CurrentRole() == Leader

	for n.lastApplied < commit {
		idx := n.lastApplied + 1
		entry, ok := n.raftLog.Get(idx)
		if !ok {
			break
		}
		n.lastApplied = idx
		if entry.Op == nil {
			continue
		}
		n.applyOne(entry.Op, isLeader)
	}
}

func (n *Node) applyOne(op *Op, replyIfLeader bool) {
	var replyBody any
	var replyErr error

	switch op.Kind {
	case OpRead:
		v, err := n.state.Read(op.Key)
		if err != nil {
			replyErr = err
		} else {
			replyBody = map[string]any{"type": "read_ok", "value": v}
		}
	case OpWrite:
		n.state.Write(op.Key, op.Value)
		replyBody = map[string]any{"type": "write_ok"}
	case OpCAS:
		if err := n.state.CAS(op.Key, op.From, op.Value); err != nil {
			replyErr = err
		} else {
			replyBody = map[string]any{"type": "cas_ok"}
		}
	}
	n.metric.LogEntriesApplied.Add(context.Background(), 1)

	if !replyIfLeader {
		return
	}
	if replyErr != nil {
		merrErr := merrToError(replyErr)
		_ = n.conn.SendReply(op.Requester, op.MsgID, map[string]any{
			"type": "error",
			"code": merr.CodeOf(merrErr),
			"text": merrErr.Error(),
		})
		return
	}
	_ = n.conn.SendReply(op.Requester, op.MsgID, replyBody)
}
