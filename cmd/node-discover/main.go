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

// Command node-discover finds sibling maelnode processes on the local
// network via mDNS during manual, multi-process bring-up. It has no
// part in Raft consensus or the txnstore protocol: cluster membership
// there is fixed once and for all by the harness's "init" message.
// This is purely a convenience for a developer running several
// raft-node/txn-node processes by hand across machines on a LAN.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/spf13/cobra"

	"github.com/firefly-oss/maelnode/pkg/cli"
)

const (
	version     = "0.1.0"
	serviceName = "_maelnode._tcp"
)

var (
	timeoutSec    int
	jsonOutput    bool
	quiet         bool
	advertiseID   string
	advertisePort int
)

// discoveredNode is one mDNS answer, reduced to the fields a developer
// wiring up a manual cluster actually needs.
type discoveredNode struct {
	NodeID string `json:"node_id"`
	Addr   string `json:"addr"`
	Port   int    `json:"port"`
}

func main() {
	root := &cobra.Command{
		Use:           "node-discover",
		Short:         "Discover or advertise maelnode processes on the local network via mDNS",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().IntVar(&timeoutSec, "timeout", 5, "discovery timeout in seconds")
	root.Flags().BoolVar(&jsonOutput, "json", false, "output discovered nodes as JSON")
	root.Flags().BoolVar(&quiet, "quiet", false, "only print \"node_id addr:port\" lines, for scripting")
	root.Flags().StringVar(&advertiseID, "advertise", "", "advertise this node id via mDNS instead of discovering (blocks until interrupted)")
	root.Flags().IntVar(&advertisePort, "advertise-port", 9000, "port to advertise alongside --advertise")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "node-discover:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// The mDNS library logs IPv6 lookup failures at a volume that
	// drowns out our own output; this tool only cares about the
	// service entries it returns.
	log.SetOutput(io.Discard)

	if advertiseID != "" {
		return runAdvertise(advertiseID, advertisePort)
	}
	return runDiscover(time.Duration(timeoutSec) * time.Second)
}

func runAdvertise(nodeID string, port int) error {
	info := []string{"node_id=" + nodeID}
	service, err := mdns.NewMDNSService(nodeID, serviceName, "", "", port, nil, info)
	if err != nil {
		return cli.NewCLIError("failed to build mDNS service record").WithDetail(err.Error())
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return cli.NewCLIError("failed to start mDNS responder").WithDetail(err.Error())
	}
	defer server.Shutdown()

	cli.PrintInfo("advertising node %q on port %d (%s), press Ctrl-C to stop", nodeID, port, serviceName)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	return nil
}

func runDiscover(timeout time.Duration) error {
	if !quiet && !jsonOutput {
		cli.PrintInfo("scanning for maelnode processes (timeout: %s)...", timeout)
	}

	entriesCh := make(chan *mdns.ServiceEntry, 16)
	var nodes []discoveredNode
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entriesCh {
			nodes = append(nodes, discoveredNode{
				NodeID: nodeIDFromInfo(entry.InfoFields),
				Addr:   entry.AddrV4.String(),
				Port:   entry.Port,
			})
		}
	}()

	if err := mdns.Query(&mdns.QueryParam{
		Service: serviceName,
		Domain:  "local",
		Timeout: timeout,
		Entries: entriesCh,
	}); err != nil {
		close(entriesCh)
		<-collected
		return cli.NewCLIError("mDNS query failed").WithDetail(err.Error())
	}
	close(entriesCh)
	<-collected

	switch {
	case jsonOutput:
		return printJSON(nodes)
	case quiet:
		printQuiet(nodes)
	default:
		printHuman(nodes)
	}
	return nil
}

func nodeIDFromInfo(fields []string) string {
	for _, f := range fields {
		if id, ok := strings.CutPrefix(f, "node_id="); ok {
			return id
		}
	}
	return "?"
}

func printJSON(nodes []discoveredNode) error {
	data, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printQuiet(nodes []discoveredNode) {
	for _, n := range nodes {
		fmt.Printf("%s %s:%d\n", n.NodeID, n.Addr, n.Port)
	}
}

func printHuman(nodes []discoveredNode) {
	if len(nodes) == 0 {
		cli.PrintWarning("no maelnode processes found on the network")
		cli.PrintInfo("start one with --advertise <node-id> so others can find it")
		return
	}
	table := cli.NewTable("NODE ID", "ADDRESS", "PORT")
	for _, n := range nodes {
		table.AddRow(n.NodeID, n.Addr, fmt.Sprintf("%d", n.Port))
	}
	table.Print()
}
