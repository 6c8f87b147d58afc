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
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/merr"
)

type echoHandler struct{}

func (echoHandler) Handle(msg Envelope) (any, error) {
	var body struct {
		Echo string `json:"echo"`
	}
	json.Unmarshal(msg.Body, &body)
	return map[string]string{"type": "echo_ok", "echo": body.Echo}, nil
}

type failingHandler struct{}

func (failingHandler) Handle(msg Envelope) (any, error) {
	return nil, merr.NewMalformedRequest("bad request")
}

type deferredHandler struct {
	deferIt bool
}

func (deferredHandler) Handle(msg Envelope) (any, error) {
	return map[string]string{"type": "write_ok"}, nil
}

func (d deferredHandler) Defer(msg Envelope) bool { return d.deferIt }

func newTestConn() (*Conn, *bytes.Buffer) {
	var out bytes.Buffer
	c := New(&out, time.Second, logging.New(io.Discard, "test", logging.INFO))
	c.SetNodeID("n1")
	return c, &out
}

func TestDispatchEchoReply(t *testing.T) {
	conn, out := newTestConn()
	d := NewDispatcher(conn, logging.New(io.Discard, "test", logging.INFO))
	d.Register("echo", echoHandler{})

	msg := Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"echo","msg_id":1,"echo":"hello"}`),
	}
	d.Dispatch(msg)

	var env Envelope
	if err := json.Unmarshal(bytes.TrimRight(out.Bytes(), "\n"), &env); err != nil {
		t.Fatalf("expected one reply line, got %q: %v", out.String(), err)
	}
	var body struct {
		Type      string `json:"type"`
		Echo      string `json:"echo"`
		InReplyTo int    `json:"in_reply_to"`
	}
	json.Unmarshal(env.Body, &body)
	if body.Type != "echo_ok" || body.Echo != "hello" || body.InReplyTo != 1 {
		t.Errorf("unexpected reply body: %+v", body)
	}
}

func TestDispatchErrorReply(t *testing.T) {
	conn, out := newTestConn()
	d := NewDispatcher(conn, logging.New(io.Discard, "test", logging.INFO))
	d.Register("write", failingHandler{})

	msg := Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"write","msg_id":2,"key":1,"value":2}`),
	}
	d.Dispatch(msg)

	var env Envelope
	json.Unmarshal(bytes.TrimRight(out.Bytes(), "\n"), &env)
	var body struct {
		Type string    `json:"type"`
		Code merr.Code `json:"code"`
	}
	json.Unmarshal(env.Body, &body)
	if body.Type != "error" || body.Code != merr.MalformedRequest {
		t.Errorf("unexpected error reply: %+v", body)
	}
}

func TestDispatchUnknownTypeDropped(t *testing.T) {
	conn, out := newTestConn()
	d := NewDispatcher(conn, logging.New(io.Discard, "test", logging.INFO))

	msg := Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"bogus","msg_id":3}`),
	}
	d.Dispatch(msg)

	if out.Len() != 0 {
		t.Errorf("expected no reply for unknown type, got %q", out.String())
	}
}

func TestDispatchDeferredHandlerSendsNoSyncReply(t *testing.T) {
	conn, out := newTestConn()
	d := NewDispatcher(conn, logging.New(io.Discard, "test", logging.INFO))
	d.Register("write", deferredHandler{deferIt: true})

	msg := Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"write","msg_id":4,"key":1,"value":2}`),
	}
	d.Dispatch(msg)

	if out.Len() != 0 {
		t.Errorf("expected deferred handler to suppress the synchronous reply, got %q", out.String())
	}
}

func TestDispatchNonDeferredSendsImmediateReply(t *testing.T) {
	conn, out := newTestConn()
	d := NewDispatcher(conn, logging.New(io.Discard, "test", logging.INFO))
	d.Register("write", deferredHandler{deferIt: false})

	msg := Envelope{
		Src:  "c1",
		Dest: "n1",
		Body: json.RawMessage(`{"type":"write","msg_id":5,"key":1,"value":2}`),
	}
	d.Dispatch(msg)

	if out.Len() == 0 {
		t.Errorf("expected an immediate reply when Defer reports false")
	}
}
