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

// Command maelctl is a developer console that spawns a single
// raft-node or txn-node process and drives it interactively: it
// performs the harness's one-time init handshake, then sends
// hand-typed read/write/cas/txn/echo requests over the same
// transport.Conn machinery a real Maelstrom harness would use, for
// manual testing outside the full multi-process cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	binPath    string
	nodeID     string
	rpcTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "maelctl",
		Short:         "Interactive console for driving a single maelnode process",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&binPath, "bin", "", "path to the raft-node or txn-node binary to spawn (required)")
	root.Flags().StringVar(&nodeID, "node-id", "n1", "node id to hand the spawned process in its init message")
	root.Flags().DurationVar(&rpcTimeout, "rpc-timeout", 5*time.Second, "how long to wait for a reply before reporting a timeout")
	root.MarkFlagRequired("bin")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "maelctl:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sess := newSession(binPath, nodeID, rpcTimeout)
	if err := sess.connect(ctx); err != nil {
		return err
	}
	defer sess.close()

	return repl(ctx, sess)
}
