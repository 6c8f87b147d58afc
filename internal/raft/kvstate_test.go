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
	"testing"

	"github.com/firefly-oss/maelnode/internal/merr"
)

func TestKVStateReadMissingKey(t *testing.T) {
	s := NewKVState()
	_, err := s.Read(1)
	if merr.CodeOf(err) != merr.KeyDoesNotExist {
		t.Errorf("expected KeyDoesNotExist, got %v", err)
	}
}

func TestKVStateWriteThenRead(t *testing.T) {
	s := NewKVState()
	s.Write(1, 42)
	v, err := s.Read(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("Read() = %d, want 42", v)
	}
}

func TestKVStateCASSuccess(t *testing.T) {
	s := NewKVState()
	s.Write(1, 1)
	if err := s.CAS(1, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := s.Read(1)
	if v != 2 {
		t.Errorf("Read() after CAS = %d, want 2", v)
	}
}

func TestKVStateCASPreconditionFailed(t *testing.T) {
	s := NewKVState()
	s.Write(1, 1)
	err := s.CAS(1, 99, 2)
	if merr.CodeOf(err) != merr.PreconditionFailed {
		t.Errorf("expected PreconditionFailed, got %v", err)
	}
	v, _ := s.Read(1)
	if v != 1 {
		t.Errorf("value should be unchanged after failed CAS, got %d", v)
	}
}

func TestKVStateCASMissingKey(t *testing.T) {
	s := NewKVState()
	err := s.CAS(1, 0, 2)
	if merr.CodeOf(err) != merr.KeyDoesNotExist {
		t.Errorf("expected KeyDoesNotExist, got %v", err)
	}
}
