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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/firefly-oss/maelnode/pkg/cli"
)

func helpFormatter() *cli.HelpFormatter {
	h := cli.NewHelpFormatter("maelctl", version)
	h.AddCommand(cli.Command{Name: "read", Usage: "read <key>", Description: "read a single int key"})
	h.AddCommand(cli.Command{Name: "write", Usage: "write <key> <value>", Description: "unconditionally store value at key"})
	h.AddCommand(cli.Command{Name: "cas", Usage: "cas <key> <from> <to>", Description: "compare-and-set key"})
	h.AddCommand(cli.Command{Name: "echo", Usage: "echo <text>", Description: "round-trip text through the node"})
	h.AddCommand(cli.Command{Name: "txn", Usage: "txn r <key> [append <key> <value> ...]", Description: "run a multi-op transaction"})
	h.AddCommand(cli.Command{Name: "\\restart", Description: "kill and respawn the node process"})
	h.AddCommand(cli.Command{Name: "\\quit", Description: "exit maelctl"})
	return h
}

// repl drives the interactive console: chzyer/readline when stdin is
// a real terminal (history, line-editing), a plain bufio.Scanner
// otherwise (piping commands from a script or test harness).
func repl(ctx context.Context, sess *session) error {
	help := helpFormatter()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return scanLoop(ctx, sess, help, os.Stdin)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", sess.nodeID),
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "\\quit",
	})
	if err != nil {
		return scanLoop(ctx, sess, help, os.Stdin)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if done := handleLine(ctx, sess, help, line); done {
			return nil
		}
	}
}

func scanLoop(ctx context.Context, sess *session, help *cli.HelpFormatter, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if handleLine(ctx, sess, help, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// handleLine processes one REPL line, returning true when the session
// should end.
func handleLine(ctx context.Context, sess *session, help *cli.HelpFormatter, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch line {
	case "\\quit", "\\q", "\\exit":
		return true
	case "\\help", "\\h":
		help.PrintUsage()
		return false
	case "\\restart":
		if !cli.ConfirmDestructive("This kills the running node process and loses its in-memory state.", sess.nodeID) {
			cli.PrintInfo("restart cancelled")
			return false
		}
		if err := sess.restart(ctx); err != nil {
			cli.PrintError("%v", err)
		}
		return false
	}

	body, err := buildBody(line)
	if err != nil {
		if ce, ok := err.(*cli.CLIError); ok {
			ce.Print()
		} else {
			cli.PrintError("%v", err)
		}
		return false
	}
	if body == nil {
		return false
	}

	resp, ok := sess.conn.SendRPC(ctx, sess.nodeID, body)
	if !ok {
		cli.PrintError("request timed out after %s", sess.rpcTimeout)
		return false
	}
	printReply(resp)
	return false
}

func printReply(resp json.RawMessage) {
	if err := errorFrom(resp); err != nil {
		cli.PrintError("%v", err)
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp, "", "  "); err != nil {
		fmt.Println(string(resp))
		return
	}
	fmt.Println(cli.Info(pretty.String()))
}

func historyFilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + "/maelctl_history"
}
