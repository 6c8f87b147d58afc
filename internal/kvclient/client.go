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
Package kvclient wraps the external, linearizable "lin-kv" Maelstrom
service: single-key read/write/cas over transport.Conn's RPC core, plus
a bounded read cache and a retry-until-non-error helper.

The cache is backed by ristretto/v2, the same library internal/txnstore
uses for its thunk cache, rather than a second, bespoke bounding scheme.
*/
package kvclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/transport"
	"github.com/go-logr/logr"
)

const serviceName = "lin-kv"

// rootKey is the well-known mutable root pointer txnstore CASes
// against. It is never cached: every other key is an immutable thunk
// id, safe to serve stale, but the root changes underneath every
// failed CAS and must always be read fresh or a loser retries forever
// against a cached value that can never match again.
const rootKey = "root"

// Client talks to the external lin-kv service over a shared transport.Conn.
type Client struct {
	conn  *transport.Conn
	log   logr.Logger
	cache *ristretto.Cache[string, json.RawMessage]
}

// New builds a Client with a read cache bounded to approximately
// maxEntries items.
func New(conn *transport.Conn, maxEntries int64, log logr.Logger) (*Client, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, json.RawMessage]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, log: log, cache: cache}, nil
}

type readReq struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type readRes struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type writeReq struct {
	Type  string          `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type casReq struct {
	Type                string `json:"type"`
	Key                 string `json:"key"`
	From                string `json:"from"`
	To                  string `json:"to"`
	CreateIfNotExists   bool   `json:"create_if_not_exists,omitempty"`
}

// Read fetches key's current value, consulting the cache first.
func (c *Client) Read(ctx context.Context, key string) (json.RawMessage, error) {
	if key != rootKey {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
	}
	resp, ok := c.conn.SendRPC(ctx, serviceName, readReq{Type: "read", Key: key})
	if !ok {
		return nil, merr.NewTemporarilyUnavailable("lin-kv read timed out")
	}
	if err := errorFrom(resp); err != nil {
		return nil, err
	}
	var res readRes
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, merr.NewMalformedRequest("lin-kv read_ok decode failed")
	}
	if key != rootKey {
		c.cache.Set(key, res.Value, 1)
	}
	return res.Value, nil
}

// Write unconditionally stores value at key.
func (c *Client) Write(ctx context.Context, key string, value json.RawMessage) error {
	resp, ok := c.conn.SendRPC(ctx, serviceName, writeReq{Type: "write", Key: key, Value: value})
	if !ok {
		return merr.NewTemporarilyUnavailable("lin-kv write timed out")
	}
	if err := errorFrom(resp); err != nil {
		return err
	}
	if key != rootKey {
		c.cache.Set(key, value, 1)
	}
	return nil
}

// CASRoot performs a compare-and-set against the well-known "root" key,
// surfacing merr.TxnConflict on failure rather than lin-kv's raw
// precondition_failed, so txnstore's retry loop has one error shape to
// branch on. The root is never cached (see rootKey), so a conflict
// needs no cache invalidation: the next readRoot already goes to
// lin-kv and observes the winner's value.
func (c *Client) CASRoot(ctx context.Context, from, to string, createIfNotExists bool) error {
	resp, ok := c.conn.SendRPC(ctx, serviceName, casReq{
		Type: "cas", Key: rootKey, From: from, To: to, CreateIfNotExists: createIfNotExists,
	})
	if !ok {
		return merr.NewTemporarilyUnavailable("lin-kv cas timed out")
	}
	if err := errorFrom(resp); err != nil {
		return merr.NewTxnConflict("root cas: " + err.Error())
	}
	return nil
}

// RetryRPC re-issues body against dest, pausing 10ms between attempts,
// until a non-error response arrives or ctx is done.
func (c *Client) RetryRPC(ctx context.Context, dest string, body any) (json.RawMessage, error) {
	for {
		resp, ok := c.conn.SendRPC(ctx, dest, body)
		if ok {
			if err := errorFrom(resp); err == nil {
				return resp, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, merr.NewTemporarilyUnavailable("retry_rpc cancelled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type errorBody struct {
	Type string    `json:"type"`
	Code merr.Code `json:"code"`
	Text string    `json:"text"`
}

func errorFrom(resp json.RawMessage) error {
	var eb errorBody
	if err := json.Unmarshal(resp, &eb); err != nil {
		return nil
	}
	if eb.Type != "error" {
		return nil
	}
	return &merr.Error{Code: eb.Code, Text: eb.Text}
}
