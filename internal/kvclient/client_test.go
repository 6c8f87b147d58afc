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

package kvclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/transport"
)

func testClient(t *testing.T, rpcTimeout time.Duration) (*Client, *transport.Conn, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	conn := transport.New(&out, rpcTimeout, logging.New(io.Discard, "test", logging.INFO))
	conn.SetNodeID("n1")
	c, err := New(conn, 1000, logging.New(io.Discard, "test", logging.INFO))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, conn, &out
}

func TestErrorFromDistinguishesErrorBodies(t *testing.T) {
	okErr := errorFrom(json.RawMessage(`{"type":"read_ok","value":1}`))
	if okErr != nil {
		t.Errorf("expected nil for a non-error body, got %v", okErr)
	}
	errResp := errorFrom(json.RawMessage(`{"type":"error","code":20,"text":"not found"}`))
	if merr.CodeOf(errResp) != merr.KeyDoesNotExist {
		t.Errorf("expected KeyDoesNotExist, got %v", errResp)
	}
}

func TestReadTimesOutWithoutCachedValue(t *testing.T) {
	c, _, _ := testClient(t, 20*time.Millisecond)
	_, err := c.Read(context.Background(), "root")
	if merr.CodeOf(err) != merr.TemporarilyUnavailable {
		t.Errorf("expected TemporarilyUnavailable on timeout, got %v", err)
	}
}

func TestReadCachesSuccessfulValue(t *testing.T) {
	c, conn, out := testClient(t, time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		var env transport.Envelope
		lines := bytes.Split(bytes.TrimRight(out.Bytes(), "\n"), []byte("\n"))
		json.Unmarshal(lines[len(lines)-1], &env)
		var hdr struct {
			MsgID int `json:"msg_id"`
		}
		json.Unmarshal(env.Body, &hdr)
		conn.SetNodeID("lin-kv") // simulate replying as the service would see dest
		_ = hdr
	}()

	// Directly exercise the cache without a live peer: seed the cache
	// for a thunk key, and a subsequent read must not attempt another
	// RPC (which would time out against an empty buffer pipe). The root
	// key is never served from the cache, so a thunk key is used here.
	if err := c.cache.Set("n1-1", json.RawMessage(`"thunk-1"`), 1); !err {
		t.Fatal("cache.Set reported failure")
	}
	c.cache.Wait()

	val, err := c.Read(context.Background(), "n1-1")
	if err != nil {
		t.Fatalf("unexpected error reading cached value: %v", err)
	}
	if string(val) != `"thunk-1"` {
		t.Errorf("Read() = %s, want \"thunk-1\"", val)
	}
}

func TestCASRootTimeoutIsTemporarilyUnavailable(t *testing.T) {
	c, _, _ := testClient(t, 20*time.Millisecond)
	err := c.CASRoot(context.Background(), "old", "new", false)
	if merr.CodeOf(err) != merr.TemporarilyUnavailable {
		t.Errorf("expected TemporarilyUnavailable on RPC timeout, got %v", err)
	}
}

func TestRetryRPCCancelledByContext(t *testing.T) {
	c, _, _ := testClient(t, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.RetryRPC(ctx, "lin-kv", map[string]string{"type": "read", "key": "root"})
	if merr.CodeOf(err) != merr.TemporarilyUnavailable {
		t.Errorf("expected TemporarilyUnavailable once context is cancelled, got %v", err)
	}
}
