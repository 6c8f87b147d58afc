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

package transport

import (
	"encoding/json"
	"sync"

	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/go-logr/logr"
)

// Handler answers one inbound message type. Handle returns the value
// to send back as a reply, or an error to surface as {type:"error"}.
type Handler interface {
	Handle(msg Envelope) (resp any, err error)
}

// DeferredHandler is a Handler that may choose to answer asynchronously
// — a Raft leader appends to its log and replies only once the entry is
// applied. Defer is checked after Handle returns successfully; true
// means "no reply now."
type DeferredHandler interface {
	Handler
	Defer(msg Envelope) bool
}

// Dispatcher routes inbound messages by body.type to a registered
// Handler, replying with errors or results as Handler.Handle dictates.
// Messages whose in_reply_to matches a live RPC waiter never reach
// Dispatch; Conn.Run filters those out upstream.
type Dispatcher struct {
	conn *Conn
	log  logr.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher builds a Dispatcher that replies over conn.
func NewDispatcher(conn *Conn, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		conn:     conn,
		log:      log,
		handlers: make(map[string]Handler),
	}
}

// Register binds a Handler to a message type name.
func (d *Dispatcher) Register(msgType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = h
}

// Dispatch is the Dispatch func passed to Conn.Run.
func (d *Dispatcher) Dispatch(msg Envelope) {
	var hdr bodyHeader
	if err := json.Unmarshal(msg.Body, &hdr); err != nil {
		d.log.Error(err, "dispatcher: malformed body, dropping", "src", msg.Src)
		return
	}

	d.mu.RLock()
	h, ok := d.handlers[hdr.Type]
	d.mu.RUnlock()
	if !ok {
		d.log.Info("dispatcher: unknown message type, dropping", "type", hdr.Type, "src", msg.Src)
		return
	}

	resp, err := h.Handle(msg)
	if err != nil {
		d.replyError(msg, hdr.MsgID, err)
		return
	}

	if dh, ok := h.(DeferredHandler); ok && dh.Defer(msg) {
		// No reply now; a later apply step answers this request.
		return
	}

	if err := d.conn.SendReply(msg.Src, hdr.MsgID, resp); err != nil {
		d.log.Error(err, "dispatcher: failed to send reply", "type", hdr.Type, "dest", msg.Src)
	}
}

// replyError sends {type:"error", code, text, in_reply_to}.
func (d *Dispatcher) replyError(msg Envelope, inReplyTo int, err error) {
	code := merr.CodeOf(err)
	if code == 0 {
		code = merr.Abort
	}
	body := struct {
		Type string    `json:"type"`
		Code merr.Code `json:"code"`
		Text string    `json:"text"`
	}{Type: "error", Code: code, Text: err.Error()}

	if sendErr := d.conn.SendReply(msg.Src, inReplyTo, body); sendErr != nil {
		d.log.Error(sendErr, "dispatcher: failed to send error reply", "dest", msg.Src)
	}
}
