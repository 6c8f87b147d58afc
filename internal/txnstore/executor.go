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

package txnstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/google/uuid"
)

// OpKind distinguishes the two client-visible transaction operations.
type OpKind string

const (
	OpRead   OpKind = "r"
	OpAppend OpKind = "append"
)

// TxnOp is one operation within a client's txn array, e.g. ["r", 3] or
// ["append", 3, 7].
type TxnOp struct {
	Kind       OpKind
	Key        int
	Value      int // meaningful only for OpAppend
	readResult any // meaningful only for a completed OpRead
}

// UnmarshalJSON decodes the 2- or 3-element wire array form.
func (op *TxnOp) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return merr.NewMalformedRequest("txn op array too short")
	}
	var kind string
	if err := json.Unmarshal(raw[0], &kind); err != nil {
		return err
	}
	var key int
	if err := json.Unmarshal(raw[1], &key); err != nil {
		return err
	}
	switch OpKind(kind) {
	case OpRead:
		*op = TxnOp{Kind: OpRead, Key: key}
	case OpAppend:
		if len(raw) < 3 {
			return merr.NewMalformedRequest("append op missing value")
		}
		var v int
		if err := json.Unmarshal(raw[2], &v); err != nil {
			return err
		}
		*op = TxnOp{Kind: OpAppend, Key: key, Value: v}
	default:
		return merr.NewMalformedRequest(fmt.Sprintf("unknown txn op %q", kind))
	}
	return nil
}

// MarshalJSON encodes back to the wire array form, reads carrying the
// observed value (or null if the key was never written).
func (op TxnOp) MarshalJSON() ([]byte, error) {
	if op.Kind == OpAppend {
		return json.Marshal([]any{string(op.Kind), op.Key, op.Value})
	}
	return json.Marshal([]any{string(op.Kind), op.Key, op.readResult})
}

const rootKey = "root"

// Execute runs txn against the transactional store, retrying the whole
// transaction from a freshly-read root on every cas conflict. It
// returns the completed ops (reads filled in with their observed
// value) in the same order they were given.
func Execute(ctx context.Context, s *Store, txn []TxnOp) ([]TxnOp, error) {
	traceID := uuid.New().String()
	ctx, span := s.metric.Tracer.Start(ctx, "maelnode.txnstore.execute")
	defer span.End()
	log := s.log.WithValues("trace_id", traceID)
	s.metric.TxnAttempts.Add(ctx, 1)

	rootID, root, err := readRoot(ctx, s)
	if err != nil {
		return nil, err
	}

	out := make([]TxnOp, len(txn))
	for i, op := range txn {
		switch op.Kind {
		case OpRead:
			list, err := root.Read(ctx, s, op.Key)
			if err != nil {
				return nil, err
			}
			out[i] = TxnOp{Kind: OpRead, Key: op.Key}
			out[i].readResult = intsOrNil(list)
		case OpAppend:
			if err := root.Append(ctx, s, op.Key, op.Value); err != nil {
				return nil, err
			}
			out[i] = TxnOp{Kind: OpAppend, Key: op.Key, Value: op.Value}
		default:
			return nil, merr.NewMalformedRequest(fmt.Sprintf("unknown txn op %q", op.Kind))
		}
	}

	if err := root.SaveThunks(ctx, s); err != nil {
		return nil, err
	}

	// A never-before-seen store has no root thunk yet, so even a
	// no-op (all-reads) transaction must mint one the first time.
	newRootID := rootID
	if root.HasChanged || rootID == "" {
		encoded, err := root.Encode()
		if err != nil {
			return nil, err
		}
		newThunk := NewLocalThunk(s.ids.next(), encoded)
		if err := newThunk.Save(ctx, s); err != nil {
			return nil, err
		}
		newRootID = newThunk.ID
	}

	if err := s.Client.CASRoot(ctx, rootID, newRootID, true); err != nil {
		log.V(1).Info("txn cas conflict, retrying", "old_root", rootID, "new_root", newRootID)
		s.metric.TxnConflicts.Add(ctx, 1)
		randomSleep()
		return Execute(ctx, s, txn)
	}

	return out, nil
}

// readRoot fetches the current root thunk id and materializes its map,
// treating an absent "root" key as a brand-new, empty store.
func readRoot(ctx context.Context, s *Store) (string, *SerializableMap, error) {
	raw, err := s.Client.Read(ctx, rootKey)
	if err != nil {
		if merr.CodeOf(err) == merr.KeyDoesNotExist {
			return "", NewSerializableMap(), nil
		}
		return "", nil, err
	}
	var rootID string
	if err := json.Unmarshal(raw, &rootID); err != nil {
		return "", nil, merr.NewMalformedRequest("root pointer decode failed")
	}
	rootThunk := NewSavedThunk(rootID)
	mapJSON, err := rootThunk.Value(ctx, s)
	if err != nil {
		return "", nil, err
	}
	m, err := DecodeSerializableMap(mapJSON)
	if err != nil {
		return "", nil, err
	}
	return rootID, m, nil
}

// randomSleep backs off 50-1000ms before a cas-conflict retry.
func randomSleep() {
	time.Sleep(50*time.Millisecond + time.Duration(rand.IntN(950))*time.Millisecond)
}

func intsOrNil(v []int) any {
	if v == nil {
		return nil
	}
	return v
}
