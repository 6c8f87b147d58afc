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
Package transport implements the Maelstrom wire protocol: one JSON
object per line on stdin/stdout, a monotonic msg_id allocator, and a
callback table correlating outbound RPCs with their replies.

Message Format:
===============

	{"src": "n1", "dest": "n2", "body": {"type": "...", "msg_id": 7, ...}}

One object per line, newline-terminated, UTF-8. in_reply_to on a
response body mirrors the request's msg_id. There is no length
prefix and no binary framing: the harness speaks line-delimited JSON
exclusively, so Conn never touches encoding/binary.

Concurrency:
============

The reader side is single-threaded: Run reads one line at a time and
calls the dispatch func on a new goroutine per message so a slow
handler never stalls the next read. The writer side serializes full
JSON lines through a single mutex so two goroutines can never
interleave partial output. The callback table is a
map guarded by its own mutex, insertion and removal atomic per entry.
*/
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

// Envelope is the outermost Maelstrom message shape.
type Envelope struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`
}

// bodyHeader extracts the fields transport itself needs to look at;
// message-specific fields stay in the raw body for handlers to decode.
type bodyHeader struct {
	Type      string `json:"type"`
	MsgID     int    `json:"msg_id,omitempty"`
	InReplyTo int    `json:"in_reply_to,omitempty"`
}

// Dispatch is called once per inbound message that was not consumed by
// the callback table.
type Dispatch func(Envelope)

// FatalHook is invoked when the reader loop hits an unparseable line,
// so the caller can exit non-zero.
type FatalHook func(err error)

// Conn is the transport core shared by every node kind: it owns msg_id
// allocation, the callback table, and serialized stdout writes.
type Conn struct {
	nodeID string

	out   io.Writer
	outMu sync.Mutex

	nextID atomic.Int64

	cbMu      sync.Mutex
	callbacks map[int]chan json.RawMessage

	rpcTimeout time.Duration
	log        logr.Logger
	onFatal    FatalHook
}

// New builds a Conn that writes to out (normally os.Stdout) and is not
// yet bound to a node id (set via SetNodeID once "init" is processed).
func New(out io.Writer, rpcTimeout time.Duration, log logr.Logger) *Conn {
	return &Conn{
		out:        out,
		callbacks:  make(map[int]chan json.RawMessage),
		rpcTimeout: rpcTimeout,
		log:        log,
		onFatal:    func(error) {},
	}
}

// SetNodeID records this process's own node id, used as the Src of
// every outbound message.
func (c *Conn) SetNodeID(id string) { c.nodeID = id }

// NodeID returns the node id set by SetNodeID, or "" before init.
func (c *Conn) NodeID() string { return c.nodeID }

// SetFatalHook installs the callback invoked when Run encounters an
// unparseable line.
func (c *Conn) SetFatalHook(hook FatalHook) { c.onFatal = hook }

// NextMsgID returns a fresh, strictly increasing outbound message id.
func (c *Conn) NextMsgID() int {
	return int(c.nextID.Add(1))
}

// Run reads newline-delimited JSON envelopes from r until EOF or a
// parse error, handing each to dispatch. It returns nil on clean EOF
// and a non-nil error on malformed input or a reader fault; the caller
// decides how to translate that into a process exit code.
func (c *Conn) Run(r io.Reader, dispatch Dispatch) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			wrapped := fmt.Errorf("transport: unparseable line: %w", err)
			c.log.Error(wrapped, "fatal: malformed stdin line", "line", string(line))
			c.onFatal(wrapped)
			return wrapped
		}
		var hdr bodyHeader
		if err := json.Unmarshal(env.Body, &hdr); err != nil {
			wrapped := fmt.Errorf("transport: unparseable body: %w", err)
			c.log.Error(wrapped, "fatal: malformed body", "line", string(line))
			c.onFatal(wrapped)
			return wrapped
		}
		if hdr.InReplyTo != 0 {
			if c.deliver(hdr.InReplyTo, env.Body) {
				continue
			}
			// A reply with no live waiter (already timed out, or a
			// duplicate from the harness) is simply dropped.
			continue
		}
		go dispatch(env)
	}
	if err := scanner.Err(); err != nil {
		c.onFatal(err)
		return fmt.Errorf("transport: read error: %w", err)
	}
	return nil
}

// deliver routes a reply body to the callback waiting on id, returning
// true if one was found (and thereby consumed).
func (c *Conn) deliver(id int, body json.RawMessage) bool {
	c.cbMu.Lock()
	ch, ok := c.callbacks[id]
	if ok {
		delete(c.callbacks, id)
	}
	c.cbMu.Unlock()
	if !ok {
		return false
	}
	ch <- body
	return true
}

// register creates a one-shot delivery slot for id and returns the
// channel a response will be pushed to.
func (c *Conn) register(id int) chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)
	c.cbMu.Lock()
	c.callbacks[id] = ch
	c.cbMu.Unlock()
	return ch
}

// unregister removes a delivery slot that timed out before a response
// arrived, so it is not delivered to late or garbage-collected.
func (c *Conn) unregister(id int) {
	c.cbMu.Lock()
	delete(c.callbacks, id)
	c.cbMu.Unlock()
}

// writeLine serializes env as one JSON line, guarded by outMu so two
// goroutines can never interleave partial writes.
func (c *Conn) writeLine(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}
	data = append(data, '\n')

	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, err = c.out.Write(data)
	return err
}

// SendReply is fire-and-forget: it answers a prior request without
// waiting for anything.
func (c *Conn) SendReply(dest string, inReplyTo int, body any) error {
	raw, err := encodeBody(body, 0, inReplyTo)
	if err != nil {
		return err
	}
	return c.writeLine(Envelope{Src: c.nodeID, Dest: dest, Body: raw})
}

// Send is like SendReply but for a message that is not itself a reply
// to anything (e.g. a fire-and-forget notification).
func (c *Conn) Send(dest string, body any) error {
	raw, err := encodeBody(body, c.NextMsgID(), 0)
	if err != nil {
		return err
	}
	return c.writeLine(Envelope{Src: c.nodeID, Dest: dest, Body: raw})
}

// SendRPC issues a request to dest and blocks until a matching reply
// arrives, ctx is cancelled, or the configured RPC timeout elapses
// (5s by default). ok is false on timeout/cancellation; no retry
// happens at this layer.
func (c *Conn) SendRPC(ctx context.Context, dest string, body any) (resp json.RawMessage, ok bool) {
	id := c.NextMsgID()
	raw, err := encodeBody(body, id, 0)
	if err != nil {
		c.log.Error(err, "transport: failed to encode rpc body", "dest", dest)
		return nil, false
	}

	ch := c.register(id)
	if err := c.writeLine(Envelope{Src: c.nodeID, Dest: dest, Body: raw}); err != nil {
		c.unregister(id)
		c.log.Error(err, "transport: failed to send rpc", "dest", dest)
		return nil, false
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	select {
	case resp := <-ch:
		return resp, true
	case <-timeoutCtx.Done():
		c.unregister(id)
		return nil, false
	}
}

// Waiter is one pending slot of a BroadcastRPC fan-out, resolved
// independently of its siblings.
type Waiter struct {
	Dest string

	conn *Conn
	id   int
	ch   chan json.RawMessage
}

// Wait blocks for this waiter's reply up to ctx's deadline or the
// connection's configured RPC timeout, whichever comes first.
func (w *Waiter) Wait(ctx context.Context) (json.RawMessage, bool) {
	timeoutCtx, cancel := context.WithTimeout(ctx, w.conn.rpcTimeout)
	defer cancel()

	select {
	case resp := <-w.ch:
		return resp, true
	case <-timeoutCtx.Done():
		w.conn.unregister(w.id)
		return nil, false
	}
}

// BroadcastRPC fans the same body out to every peer, each as an
// independent SendRPC; the caller polls the returned Waiters.
func (c *Conn) BroadcastRPC(peers []string, body any) []*Waiter {
	waiters := make([]*Waiter, 0, len(peers))
	for _, peer := range peers {
		id := c.NextMsgID()
		raw, err := encodeBody(body, id, 0)
		if err != nil {
			c.log.Error(err, "transport: failed to encode broadcast body", "dest", peer)
			continue
		}
		ch := c.register(id)
		if err := c.writeLine(Envelope{Src: c.nodeID, Dest: peer, Body: raw}); err != nil {
			c.unregister(id)
			c.log.Error(err, "transport: failed to send broadcast rpc", "dest", peer)
			continue
		}
		waiters = append(waiters, &Waiter{Dest: peer, conn: c, id: id, ch: ch})
	}
	return waiters
}

// encodeBody marshals body to JSON and splices in msg_id/in_reply_to,
// whichever is non-zero, without requiring every caller's struct to
// carry those fields itself.
func encodeBody(body any, msgID, inReplyTo int) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal body: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("transport: body must encode to a JSON object: %w", err)
	}
	if msgID != 0 {
		fields["msg_id"], _ = json.Marshal(msgID)
	}
	if inReplyTo != 0 {
		fields["in_reply_to"], _ = json.Marshal(inReplyTo)
	}
	return json.Marshal(fields)
}
