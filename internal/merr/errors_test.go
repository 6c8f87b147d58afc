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

package merr

import (
	"errors"
	"testing"
)

func TestCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code Code
	}{
		{"node not found", NewNodeNotFound("n9"), NodeNotFound},
		{"not supported", NewNotSupported("lin-kv2"), NotSupported},
		{"temporarily unavailable", NewTemporarilyUnavailable("no leader"), TemporarilyUnavailable},
		{"malformed request", NewMalformedRequest("missing key"), MalformedRequest},
		{"abort", NewAbort("save failed"), Abort},
		{"key does not exist", NewKeyDoesNotExist("5"), KeyDoesNotExist},
		{"key already exists", NewKeyAlreadyExists("5"), KeyAlreadyExists},
		{"precondition failed", NewPreconditionFailed("5"), PreconditionFailed},
		{"txn conflict", NewTxnConflict("root cas"), TxnConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.code)
			}
			if CodeOf(tt.err) != tt.code {
				t.Errorf("CodeOf() = %d, want %d", CodeOf(tt.err), tt.code)
			}
			if !Is(tt.err, tt.code) {
				t.Errorf("Is(err, %d) = false, want true", tt.code)
			}
		})
	}
}

func TestCodeOfNonMaelError(t *testing.T) {
	if CodeOf(errors.New("plain")) != 0 {
		t.Errorf("CodeOf(plain error) should be 0")
	}
}

func TestWithCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewAbort("save failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected Unwrap() chain to reach cause")
	}
	if err.Error() == "" {
		t.Errorf("Error() should not be empty")
	}
}
