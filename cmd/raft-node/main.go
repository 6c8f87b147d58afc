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

// Command raft-node runs a single replica of maelnode's Raft-backed
// linearizable key/value store under the Maelstrom harness: it reads
// one JSON message per line from stdin and writes replies to stdout,
// treating stderr as its only place to log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-oss/maelnode/internal/config"
	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/firefly-oss/maelnode/internal/raft"
	"github.com/firefly-oss/maelnode/internal/transport"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "raft-node",
		Short:         "Maelstrom-harness Raft replica for maelnode's linearizable kv store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runNode,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file overriding config.DefaultConfig()")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "raft-node:", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := logging.New(os.Stderr, "raft-node", logging.ParseLevel(cfg.LogLevel))

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("raft-node: building metrics: %w", err)
	}

	conn := transport.New(os.Stdout, cfg.RPCTimeout, log)
	conn.SetFatalHook(func(err error) {
		log.Error(err, "raft-node: fatal transport error, exiting")
		os.Exit(1)
	})

	node := raft.NewNode(conn, cfg, m, log)

	disp := transport.NewDispatcher(conn, log)
	disp.Register("init", raft.InitHandler{Node: node})
	disp.Register("echo", raft.EchoHandler{})
	disp.Register("read", raft.ReadHandler{Node: node})
	disp.Register("write", raft.WriteHandler{Node: node})
	disp.Register("cas", raft.CasHandler{Node: node})
	disp.Register("request_vote", raft.RequestVoteHandler{Node: node})
	disp.Register("append_entries", raft.AppendEntriesHandler{Node: node})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- node.Run(ctx) }()

	if err := conn.Run(os.Stdin, disp.Dispatch); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("raft-node: stdin closed: %w", err)
	}
	cancel()
	return <-errCh
}
