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
	"strconv"
)

// SerializableMap is the root value of the transactional store: a map
// from int key to a thunk holding that key's list-of-ints. Its JSON
// form is {"<key>": "<thunk-id>", ...}.
type SerializableMap struct {
	entries    map[int]*Thunk
	HasChanged bool
}

// NewSerializableMap returns an empty map, used the first time a
// cluster ever runs (no "root" key exists yet in lin-kv).
func NewSerializableMap() *SerializableMap {
	return &SerializableMap{entries: make(map[int]*Thunk)}
}

// DecodeSerializableMap materializes a map from its JSON thunk-id form
// without reading any child thunk's value eagerly.
func DecodeSerializableMap(raw json.RawMessage) (*SerializableMap, error) {
	var idsByKey map[string]string
	if err := json.Unmarshal(raw, &idsByKey); err != nil {
		return nil, err
	}
	m := &SerializableMap{entries: make(map[int]*Thunk, len(idsByKey))}
	for kStr, id := range idsByKey {
		k, err := strconv.Atoi(kStr)
		if err != nil {
			return nil, err
		}
		m.entries[k] = NewSavedThunk(id)
	}
	return m, nil
}

// Encode renders the map's current thunk ids as JSON, exactly as
// lin-kv expects a root value to look.
func (m *SerializableMap) Encode() (json.RawMessage, error) {
	idsByKey := make(map[string]string, len(m.entries))
	for k, t := range m.entries {
		idsByKey[strconv.Itoa(k)] = t.ID
	}
	return json.Marshal(idsByKey)
}

// Read returns the decoded list at k, or nil if k has never been
// written.
func (m *SerializableMap) Read(ctx context.Context, s *Store, k int) ([]int, error) {
	t, ok := m.entries[k]
	if !ok {
		return nil, nil
	}
	raw, err := t.Value(ctx, s)
	if err != nil {
		return nil, err
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Append pushes v onto the list at k (empty if k is new), allocating a
// fresh local thunk for the updated list and marking the map changed.
func (m *SerializableMap) Append(ctx context.Context, s *Store, k, v int) error {
	list, err := m.Read(ctx, s, k)
	if err != nil {
		return err
	}
	list = append(list, v)
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	m.entries[k] = NewLocalThunk(s.ids.next(), raw)
	m.HasChanged = true
	return nil
}

// SaveThunks writes every unsaved child thunk to lin-kv, aborting on
// the first failure so no partial transaction is ever visible.
func (m *SerializableMap) SaveThunks(ctx context.Context, s *Store) error {
	for _, t := range m.entries {
		if err := t.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
