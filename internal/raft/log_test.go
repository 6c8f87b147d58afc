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
	"testing"
)

func TestOpStringRoundTrip(t *testing.T) {
	ops := []*Op{
		{Kind: OpRead, Key: 5, Requester: "n3", MsgID: 19},
		{Kind: OpWrite, Key: 7, Value: 42, Requester: "n3", MsgID: 19},
		{Kind: OpCAS, Key: 7, From: 1, Value: 2, Requester: "n1", MsgID: 4},
	}
	for _, op := range ops {
		s := op.String()
		got, err := ParseOp(s)
		if err != nil {
			t.Fatalf("ParseOp(%q) failed: %v", s, err)
		}
		if *got != *op {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, op)
		}
	}
}

func TestOpStringExactForm(t *testing.T) {
	op := &Op{Kind: OpWrite, Key: 7, Value: 42, Requester: "n3", MsgID: 19}
	if got, want := op.String(), "Write:7,42,n3,19"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseOpRejectsMalformed(t *testing.T) {
	if _, err := ParseOp("Write:7,notanint,n3,19"); err == nil {
		t.Error("expected ParseOp to reject a non-integer field")
	}
	if _, err := ParseOp("Bogus:1,2,3"); err == nil {
		t.Error("expected ParseOp to reject an unknown kind")
	}
	if _, err := ParseOp("NoColon"); err == nil {
		t.Error("expected ParseOp to reject a missing separator")
	}
}

func TestEntryJSONRoundTrip(t *testing.T) {
	entries := []Entry{
		{Term: 0, Op: nil},
		{Term: 3, Op: &Op{Kind: OpWrite, Key: 7, Value: 42, Requester: "n3", MsgID: 19}},
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var got Entry
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if got.Term != e.Term {
			t.Errorf("Term mismatch: got %d, want %d", got.Term, e.Term)
		}
		if (got.Op == nil) != (e.Op == nil) {
			t.Fatalf("Op nilness mismatch: got %v, want %v", got.Op, e.Op)
		}
		if e.Op != nil && *got.Op != *e.Op {
			t.Errorf("Op mismatch: got %+v, want %+v", got.Op, e.Op)
		}
	}
}

func TestNewLogStartsWithSentinel(t *testing.T) {
	l := NewLog()
	if l.Size() != 1 {
		t.Fatalf("expected Size()==1 for fresh log, got %d", l.Size())
	}
	e, ok := l.Get(0)
	if !ok || e.Term != 0 || e.Op != nil {
		t.Errorf("expected sentinel at index 0, got %+v ok=%v", e, ok)
	}
}

func TestLogAppendAndGet(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Term: 1, Op: &Op{Kind: OpWrite, Key: 1, Value: 2, Requester: "n1", MsgID: 1}})
	l.Append(Entry{Term: 1, Op: &Op{Kind: OpRead, Key: 1, Requester: "n1", MsgID: 2}})

	if l.Size() != 3 {
		t.Fatalf("expected Size()==3, got %d", l.Size())
	}
	e, ok := l.Get(1)
	if !ok || e.Op.Kind != OpWrite {
		t.Errorf("expected Write at index 1, got %+v", e)
	}
	if l.LastIndex() != 2 {
		t.Errorf("expected LastIndex()==2, got %d", l.LastIndex())
	}
	if _, ok := l.Get(99); ok {
		t.Error("expected Get out of range to report ok=false")
	}
}

func TestLogTruncate(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Term: 1}, Entry{Term: 1}, Entry{Term: 2})
	l.Truncate(1)
	if l.Size() != 2 {
		t.Fatalf("expected Size()==2 after Truncate(1), got %d", l.Size())
	}
	if l.LastIndex() != 1 {
		t.Errorf("expected LastIndex()==1 after truncate, got %d", l.LastIndex())
	}
}

func TestLogTruncateNoopWhenLongerThanCurrent(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Term: 1})
	l.Truncate(10)
	if l.Size() != 2 {
		t.Errorf("Truncate beyond current length should be a no-op, got size %d", l.Size())
	}
}

func TestLogUpToIndex(t *testing.T) {
	l := NewLog()
	l.Append(Entry{Term: 1}, Entry{Term: 1}, Entry{Term: 2})

	if got := l.UpToIndex(0); got != nil {
		t.Errorf("UpToIndex(0) should be empty, got %v", got)
	}
	got := l.UpToIndex(2)
	if len(got) != 2 {
		t.Fatalf("UpToIndex(2) expected 2 entries, got %d", len(got))
	}
	if got := l.UpToIndex(99); got != nil {
		t.Errorf("UpToIndex beyond size should be empty, got %v", got)
	}
}
