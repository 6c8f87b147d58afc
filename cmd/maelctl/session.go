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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/transport"
	"github.com/firefly-oss/maelnode/pkg/cli"
)

// session wraps one spawned node subprocess and the transport.Conn
// maelctl drives it through, exactly the way kvclient drives the
// external lin-kv service: a conn sends RPCs and waits on
// in_reply_to, the node's own msg_id bookkeeping never leaks out.
type session struct {
	bin        string
	nodeID     string
	rpcTimeout time.Duration

	cmd  *exec.Cmd
	conn *transport.Conn
}

func newSession(bin, nodeID string, rpcTimeout time.Duration) *session {
	return &session{bin: bin, nodeID: nodeID, rpcTimeout: rpcTimeout}
}

// connect spawns the node binary, wires a transport.Conn to its
// stdin/stdout, and sends the one-time init message every node
// requires before it answers anything else.
func (s *session) connect(ctx context.Context) error {
	spinner := cli.NewSpinner(fmt.Sprintf("starting %s...", s.bin))
	spinner.Start()

	cmd := exec.Command(s.bin)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		spinner.StopWithError(err.Error())
		return cli.ErrNodeSpawnFailed(s.bin, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		spinner.StopWithError(err.Error())
		return cli.ErrNodeSpawnFailed(s.bin, err)
	}
	cmd.Stderr = logPrefixWriter{prefix: "[" + s.nodeID + "] "}

	if err := cmd.Start(); err != nil {
		spinner.StopWithError(err.Error())
		return cli.ErrNodeSpawnFailed(s.bin, err)
	}

	log := logging.New(io.Discard, "maelctl", logging.ERROR)
	conn := transport.New(stdin, s.rpcTimeout, log)
	conn.SetNodeID("maelctl")
	go conn.Run(stdout, func(transport.Envelope) {})

	s.cmd = cmd
	s.conn = conn

	resp, ok := conn.SendRPC(ctx, s.nodeID, map[string]any{
		"type":     "init",
		"node_id":  s.nodeID,
		"node_ids": []string{s.nodeID},
	})
	if !ok {
		spinner.StopWithError("init timed out")
		return cli.NewCLIError("node did not answer init").WithDetail(fmt.Sprintf("timeout after %s", s.rpcTimeout))
	}
	if err := errorFrom(resp); err != nil {
		spinner.StopWithError(err.Error())
		return err
	}

	spinner.StopWithSuccess(fmt.Sprintf("connected to %s as node %q", s.bin, s.nodeID))
	return nil
}

// close terminates the node subprocess.
func (s *session) close() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
}

// restart kills the current subprocess and connects a fresh one,
// reusing the same bin/nodeID/rpcTimeout.
func (s *session) restart(ctx context.Context) error {
	s.close()
	return s.connect(ctx)
}

// logPrefixWriter forwards the node's stderr to maelctl's own stderr
// with a node-id prefix, so a developer watching the console can tell
// which process logged what.
type logPrefixWriter struct {
	prefix string
}

func (w logPrefixWriter) Write(p []byte) (int, error) {
	fmt.Fprint(os.Stderr, cli.Dimmed(w.prefix), string(p))
	return len(p), nil
}
