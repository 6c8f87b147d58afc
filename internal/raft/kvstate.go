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
	"strconv"
	"sync"

	"github.com/firefly-oss/maelnode/internal/merr"
)

// KVState is the deterministic key/value state machine every replica
// applies committed log entries to. It is mutated only from the apply
// pump; all other callers only read it, so a RWMutex is
// sufficient — there is no separate write path to coordinate against.
type KVState struct {
	mu   sync.RWMutex
	vals map[int]int
}

// NewKVState returns an empty state machine.
func NewKVState() *KVState {
	return &KVState{vals: make(map[int]int)}
}

// Read returns the current value for key, or merr.KeyDoesNotExist.
func (s *KVState) Read(key int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[key]
	if !ok {
		return 0, merr.NewKeyDoesNotExist(keyText(key))
	}
	return v, nil
}

// Write unconditionally sets key to value.
func (s *KVState) Write(key, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
}

// CAS sets key to to iff its current value equals from. A missing key
// fails with merr.KeyDoesNotExist and is not created; a present key
// holding a value other than from fails with merr.PreconditionFailed.
func (s *KVState) CAS(key, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vals[key]
	if !ok {
		return merr.NewKeyDoesNotExist(keyText(key))
	}
	if cur != from {
		return merr.NewPreconditionFailed(keyText(key))
	}
	s.vals[key] = to
	return nil
}

func keyText(key int) string {
	return "key " + strconv.Itoa(key)
}
