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

import "encoding/json"

// Wire shapes for the Raft RPCs. These travel inside
// transport.Envelope.Body; msg_id/in_reply_to are spliced in by the
// transport layer, not carried in these structs.

type requestVoteReq struct {
	Type         string `json:"type"`
	Term         int    `json:"term"`
	CandidateID  string `json:"candidate_id"`
	LastLogIndex int    `json:"last_log_index"`
	LastLogTerm  int    `json:"last_log_term"`
}

type requestVoteRes struct {
	Type        string `json:"type"`
	Term        int    `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
}

type appendEntriesReq struct {
	Type          string  `json:"type"`
	Term          int     `json:"term"`
	LeaderID      string  `json:"leader_id"`
	PrevLogIndex  int     `json:"prev_log_index"`
	PrevLogTerm   int     `json:"prev_log_term"`
	Entries       []Entry `json:"entries"`
	LeaderCommit  int     `json:"leader_commit"`
}

type appendEntriesRes struct {
	Type    string `json:"type"`
	Term    int    `json:"term"`
	Success bool   `json:"success"`
}

type readReq struct {
	Type  string `json:"type"`
	Key   int    `json:"key"`
}

type writeReq struct {
	Type  string `json:"type"`
	Key   int    `json:"key"`
	Value int    `json:"value"`
}

type casReq struct {
	Type string `json:"type"`
	Key  int    `json:"key"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

func decodeBody(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}
