// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command rawhttp serves a small fixed set of HTTP/1.1 routes over raw TCP.
//
// Settings come from the HOSTNAME, PORT and BUFFER_SIZE environment
// variables, then an optional YAML file given by --config, then defaults.
// SIGINT and SIGTERM stop the server and SIGHUP reloads its settings.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/z5labs/rawhttp/server"
)

func main() {
	cmd := newRootCmd(os.Stderr)
	cmd.SetArgs(os.Args[1:])

	err := cmd.ExecuteContext(context.Background())
	os.Exit(exitCode(err))
}

// exitCode maps the error returned by the root command onto a process exit
// code. Only an error exit signal picks its own code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr server.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
