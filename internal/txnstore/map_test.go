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
	"encoding/json"
	"testing"
)

func TestSerializableMapEncodeDecodeRoundTrip(t *testing.T) {
	m := NewSerializableMap()
	m.entries[3] = NewSavedThunk("n1-1")
	m.entries[7] = NewSavedThunk("n1-2")

	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeSerializableMap(encoded)
	if err != nil {
		t.Fatalf("DecodeSerializableMap failed: %v", err)
	}
	if len(decoded.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded.entries))
	}
	if decoded.entries[3].ID != "n1-1" || decoded.entries[7].ID != "n1-2" {
		t.Errorf("round-tripped ids mismatch: %+v", decoded.entries)
	}
}

func TestDecodeSerializableMapEmptyObject(t *testing.T) {
	m, err := DecodeSerializableMap(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.entries) != 0 {
		t.Errorf("expected empty map, got %d entries", len(m.entries))
	}
	if m.HasChanged {
		t.Error("a freshly-decoded map must not report HasChanged")
	}
}

func TestSerializableMapReadMissingKeyReturnsNil(t *testing.T) {
	m := NewSerializableMap()
	list, err := m.Read(nil, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list != nil {
		t.Errorf("expected nil for an absent key, got %v", list)
	}
}
