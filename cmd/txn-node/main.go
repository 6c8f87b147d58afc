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

// Command txn-node runs a single replica of maelnode's thunk-based
// transactional store under the Maelstrom harness, layering multi-key
// "txn" requests on top of the external lin-kv service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-oss/maelnode/internal/config"
	"github.com/firefly-oss/maelnode/internal/kvclient"
	"github.com/firefly-oss/maelnode/internal/logging"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/firefly-oss/maelnode/internal/transport"
	"github.com/firefly-oss/maelnode/internal/txnstore"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "txn-node",
		Short:         "Maelstrom-harness node for maelnode's thunk-based transactional store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runNode,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file overriding config.DefaultConfig()")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "txn-node:", err)
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

	log := logging.New(os.Stderr, "txn-node", logging.ParseLevel(cfg.LogLevel))

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("txn-node: building metrics: %w", err)
	}

	conn := transport.New(os.Stdout, cfg.RPCTimeout, log)
	conn.SetFatalHook(func(err error) {
		log.Error(err, "txn-node: fatal transport error, exiting")
		os.Exit(1)
	})

	kv, err := kvclient.New(conn, cfg.ThunkCacheSize, log)
	if err != nil {
		return fmt.Errorf("txn-node: building lin-kv client: %w", err)
	}

	node := txnstore.NewNode(conn, kv, cfg, m, log)

	disp := transport.NewDispatcher(conn, log)
	disp.Register("init", txnstore.InitHandler{Node: node})
	disp.Register("echo", txnstore.EchoHandler{})
	disp.Register("txn", txnstore.TxnHandler{Node: node})

	if err := conn.Run(os.Stdin, disp.Dispatch); err != nil {
		return fmt.Errorf("txn-node: stdin closed: %w", err)
	}
	return nil
}
