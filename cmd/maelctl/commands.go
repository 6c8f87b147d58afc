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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/firefly-oss/maelnode/pkg/cli"
)

// errorFrom turns a {"type":"error",...} reply body into a *cli.CLIError.
func errorFrom(resp json.RawMessage) error {
	var hdr struct {
		Type string `json:"type"`
		Code int    `json:"code"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp, &hdr); err != nil {
		return cli.NewCLIError("malformed reply").WithDetail(err.Error())
	}
	if hdr.Type != "error" {
		return nil
	}
	return cli.NewCLIError(fmt.Sprintf("node replied with error %d", hdr.Code)).WithDetail(hdr.Text)
}

// buildBody turns one REPL line into the JSON body maelctl sends as
// an RPC, or an error describing what's wrong with the input.
func buildBody(line string) (any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "read":
		if len(args) != 1 {
			return nil, cli.ErrMissingArgument("key", "read <key>")
		}
		key, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, cli.ErrInvalidValue("key", args[0], "must be an integer")
		}
		return map[string]any{"type": "read", "key": key}, nil

	case "write":
		if len(args) != 2 {
			return nil, cli.ErrMissingArgument("key value", "write <key> <value>")
		}
		key, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, cli.ErrInvalidValue("key", args[0], "must be an integer")
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, cli.ErrInvalidValue("value", args[1], "must be an integer")
		}
		return map[string]any{"type": "write", "key": key, "value": value}, nil

	case "cas":
		if len(args) != 3 {
			return nil, cli.ErrMissingArgument("key from to", "cas <key> <from> <to>")
		}
		key, err1 := strconv.Atoi(args[0])
		from, err2 := strconv.Atoi(args[1])
		to, err3 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, cli.ErrInvalidValue("key/from/to", line, "must all be integers")
		}
		return map[string]any{"type": "cas", "key": key, "from": from, "to": to}, nil

	case "echo":
		return map[string]any{"type": "echo", "echo": strings.Join(args, " ")}, nil

	case "txn":
		ops, err := parseTxnOps(args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "txn", "txn": ops}, nil

	default:
		return nil, cli.ErrInvalidCommand(verb)
	}
}

// parseTxnOps reads a flat token stream like "r 1 append 2 3 r 1" into
// the txn request's ["r",k,v]/["append",k,v] wire array form.
func parseTxnOps(args []string) ([][]any, error) {
	var ops [][]any
	for i := 0; i < len(args); {
		switch args[i] {
		case "r":
			if i+1 >= len(args) {
				return nil, cli.ErrMissingArgument("key", "txn r <key> [append <key> <value> ...]")
			}
			key, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, cli.ErrInvalidValue("key", args[i+1], "must be an integer")
			}
			ops = append(ops, []any{"r", key, nil})
			i += 2
		case "append":
			if i+2 >= len(args) {
				return nil, cli.ErrMissingArgument("key value", "txn append <key> <value>")
			}
			key, err1 := strconv.Atoi(args[i+1])
			value, err2 := strconv.Atoi(args[i+2])
			if err1 != nil || err2 != nil {
				return nil, cli.ErrInvalidValue("key/value", strings.Join(args[i+1:i+3], " "), "must both be integers")
			}
			ops = append(ops, []any{"append", key, value})
			i += 3
		default:
			return nil, cli.ErrInvalidCommand("txn " + args[i])
		}
	}
	if len(ops) == 0 {
		return nil, cli.ErrMissingArgument("ops", "txn r <key> | txn append <key> <value>")
	}
	return ops, nil
}
