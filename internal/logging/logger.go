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
Package logging sets up maelnode's structured logger.

stdout is reserved for the Maelstrom wire protocol, so every log line
goes to stderr. The Level/ParseLevel contract mirrors flydb's
internal/logging package; the logger itself is a github.com/go-logr/logr
handle backed by go-logr/stdr, passed by value to each subsystem rather
than reached through a package-level global.
*/
package logging

import (
	"io"
	"log"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Level is a logging verbosity level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel parses a level name case-insensitively, defaulting to INFO
// for anything unrecognized (including "WARNING" as an alias for WARN).
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// stdrVerbosity converts a Level into logr's increasing-verbosity V()
// scale, where V(0) is always enabled and higher numbers are more
// verbose. ERROR/WARN map to logr.Error/V(0); INFO is V(0); DEBUG is V(1).
func stdrVerbosity(l Level) int {
	if l <= DEBUG {
		return 1
	}
	return 0
}

// New builds a logr.Logger that writes to w (normally os.Stderr),
// prefixed with name, enabled up to the given level.
func New(w io.Writer, name string, level Level) logr.Logger {
	std := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	stdr.SetVerbosity(stdrVerbosity(level))
	return stdr.New(std).WithName(name)
}
