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

/*
Package raft implements the replicated consensus log and the
deterministic key/value state machine it drives.

Real log entries start at index 1: index 0 is a sentinel {term:0, op:nil}
kept at slice position 0, and Get(i) returns the entry at slice position
i, so the leader can always look up the term of "the entry before
index 1".
*/
package raft

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// OpKind tags which client operation an Entry carries.
type OpKind string

const (
	OpRead  OpKind = "Read"
	OpWrite OpKind = "Write"
	OpCAS   OpKind = "CAS"
)

// Op is the tagged union of client operations carried by a log entry.
// requester/msg_id travel with the op so whichever replica is leader
// when it commits can synthesize the correct reply.
type Op struct {
	Kind      OpKind
	Key       int
	Value     int // Write.value, or CAS.to
	From      int // CAS.from only
	Requester string
	MsgID     int
}

// String renders the deterministic "Kind:field,field,..." form used
// for log persistence and replication.
func (o *Op) String() string {
	switch o.Kind {
	case OpRead:
		return fmt.Sprintf("Read:%d,%s,%d", o.Key, o.Requester, o.MsgID)
	case OpWrite:
		return fmt.Sprintf("Write:%d,%d,%s,%d", o.Key, o.Value, o.Requester, o.MsgID)
	case OpCAS:
		return fmt.Sprintf("CAS:%d,%d,%d,%s,%d", o.Key, o.From, o.Value, o.Requester, o.MsgID)
	default:
		return ""
	}
}

// ParseOp is String's exact inverse.
func ParseOp(s string) (*Op, error) {
	if s == "" {
		return nil, nil
	}
	kind, rest, found := strings.Cut(s, ":")
	if !found {
		return nil, fmt.Errorf("raft: malformed op %q: missing kind separator", s)
	}
	fields := strings.Split(rest, ",")

	switch OpKind(kind) {
	case OpRead:
		if len(fields) != 3 {
			return nil, fmt.Errorf("raft: malformed Read op %q", s)
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed Read key in %q: %w", s, err)
		}
		msgID, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed Read msg_id in %q: %w", s, err)
		}
		return &Op{Kind: OpRead, Key: key, Requester: fields[1], MsgID: msgID}, nil

	case OpWrite:
		if len(fields) != 4 {
			return nil, fmt.Errorf("raft: malformed Write op %q", s)
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed Write key in %q: %w", s, err)
		}
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed Write value in %q: %w", s, err)
		}
		msgID, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed Write msg_id in %q: %w", s, err)
		}
		return &Op{Kind: OpWrite, Key: key, Value: value, Requester: fields[2], MsgID: msgID}, nil

	case OpCAS:
		if len(fields) != 5 {
			return nil, fmt.Errorf("raft: malformed CAS op %q", s)
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed CAS key in %q: %w", s, err)
		}
		from, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed CAS from in %q: %w", s, err)
		}
		to, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed CAS to in %q: %w", s, err)
		}
		msgID, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("raft: malformed CAS msg_id in %q: %w", s, err)
		}
		return &Op{Kind: OpCAS, Key: key, From: from, Value: to, Requester: fields[3], MsgID: msgID}, nil

	default:
		return nil, fmt.Errorf("raft: unknown op kind %q", kind)
	}
}

// Entry is one slot in the replicated log.
type Entry struct {
	Term int
	Op   *Op // nil for the sentinel
}

type entryJSON struct {
	Term int    `json:"term"`
	Op   string `json:"op,omitempty"`
}

// MarshalJSON encodes Entry as {"term": N, "op": "<Kind>:field,..."}.
func (e Entry) MarshalJSON() ([]byte, error) {
	ej := entryJSON{Term: e.Term}
	if e.Op != nil {
		ej.Op = e.Op.String()
	}
	return json.Marshal(ej)
}

// UnmarshalJSON is MarshalJSON's exact inverse.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var ej entryJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}
	e.Term = ej.Term
	if ej.Op == "" {
		e.Op = nil
		return nil
	}
	op, err := ParseOp(ej.Op)
	if err != nil {
		return err
	}
	e.Op = op
	return nil
}

// Log is the mutex-guarded, 1-based replicated log. The zero value is
// not ready for use; call NewLog.
type Log struct {
	mu      sync.RWMutex
	entries []Entry // entries[0] is the term-0 sentinel
}

// NewLog returns a Log containing only the sentinel entry.
func NewLog() *Log {
	return &Log{entries: []Entry{{Term: 0, Op: nil}}}
}

// Get returns the entry at 1-based index i, or (Entry{}, false) if i is
// out of range.
func (l *Log) Get(i int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Last returns the final entry (at least the sentinel).
func (l *Log) Last() Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1]
}

// LastIndex returns the 1-based index of the final entry (0 when only
// the sentinel is present, matching "log.size()-1" elsewhere in the
// node, since size() counts the sentinel as slot 0).
func (l *Log) LastIndex() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries) - 1
}

// Size returns the number of entries, including the sentinel.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Append extends the log with entries, returning the new size.
func (l *Log) Append(entries ...Entry) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
	return len(l.entries)
}

// Truncate drops every entry beyond 1-based index length, i.e. keeps
// exactly `length+1` slice elements (length entries plus the sentinel).
func (l *Log) Truncate(length int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if length+1 < len(l.entries) {
		l.entries = l.entries[:length+1]
	}
}

// UpToIndex returns a copy of the entries at 1-based indices i..size-1
// inclusive — "what a follower needs starting at i." i=0 returns empty:
// the sentinel entry at index 0 is never itself replicated.
func (l *Log) UpToIndex(i int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i <= 0 || i >= len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}
