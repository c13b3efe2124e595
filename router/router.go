// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router maps a parsed request onto one of the server's fixed behaviors.
package router

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/z5labs/rawhttp/files"
	"github.com/z5labs/rawhttp/internal/noop"
	"github.com/z5labs/rawhttp/internal/slogfield"
	"github.com/z5labs/rawhttp/protocol"
)

const (
	echoPrefix  = "/echo/"
	filesPrefix = "/files/"
)

// DirectoryProvider supplies the base directory for /files/ requests.
type DirectoryProvider interface {
	Directory() (string, bool)
}

// StaticDirectory is a fixed base directory. The empty string means no
// directory was configured.
type StaticDirectory string

// Directory implements the [DirectoryProvider] interface.
func (d StaticDirectory) Directory() (string, bool) {
	return string(d), d != ""
}

// Option configures a [Router].
type Option func(*Router)

// Logger sets the logger used to report file failures.
func Logger(log *slog.Logger) Option {
	return func(rt *Router) {
		rt.log = log
	}
}

// Router is safe for concurrent use as long as its [files.Store] is.
type Router struct {
	dir   DirectoryProvider
	files files.Store
	log   *slog.Logger
}

// New returns a [Router] serving /files/ out of dir through store.
func New(dir DirectoryProvider, store files.Store, opts ...Option) *Router {
	rt := &Router{
		dir:   dir,
		files: store,
		log:   noop.Logger(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Route returns the response for req:
//
//	/               200, no body
//	/user-agent     200, the User-Agent value
//	/echo/<rest>    200, <rest> verbatim
//	GET /files/n    200 with the file, 404 on any read failure
//	POST /files/n   201 echoing the written body, 500 on write failure
//	* /files/n      400
//	anything else   404
func (rt *Router) Route(ctx context.Context, req *protocol.Request) protocol.Response {
	path := req.Headers.Path
	switch {
	case path == "/":
		return protocol.Empty(protocol.StatusOK)
	case path == "/user-agent":
		return protocol.Text(protocol.StatusOK, req.Headers.UserAgent)
	case strings.HasPrefix(path, echoPrefix):
		return protocol.Text(protocol.StatusOK, path[len(echoPrefix):])
	case strings.HasPrefix(path, filesPrefix):
		return rt.routeFile(ctx, req, path[len(filesPrefix):])
	default:
		return protocol.Empty(protocol.StatusNotFound)
	}
}

func (rt *Router) routeFile(ctx context.Context, req *protocol.Request, name string) protocol.Response {
	method := req.Headers.Method
	if method != "GET" && method != "POST" {
		return protocol.Empty(protocol.StatusBadRequest)
	}

	if !safeName(name) {
		rt.log.WarnContext(ctx, "rejected file name", slogfield.String("name", name))
		return protocol.Empty(protocol.StatusNotFound)
	}

	dir, ok := rt.dir.Directory()
	if !ok {
		rt.log.ErrorContext(ctx, "no directory configured for file requests")
		return protocol.Empty(protocol.StatusInternalServerError)
	}
	full := filepath.Join(dir, name)

	if method == "GET" {
		b, err := rt.files.Read(full)
		if err != nil {
			rt.log.InfoContext(ctx, "failed to read file", slogfield.String("path", full), slogfield.Error(err))
			return protocol.Empty(protocol.StatusNotFound)
		}
		return protocol.Octets(protocol.StatusOK, b)
	}

	body := req.Body
	if body == nil {
		body = []byte{}
	}
	err := rt.files.Write(full, body)
	if err != nil {
		rt.log.ErrorContext(ctx, "failed to write file", slogfield.String("path", full), slogfield.Error(err))
		return protocol.Empty(protocol.StatusInternalServerError)
	}
	return protocol.Octets(protocol.StatusCreated, body)
}

// safeName rejects empty names and any name with a parent directory component.
func safeName(name string) bool {
	if name == "" {
		return false
	}
	components := strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, c := range components {
		if c == ".." {
			return false
		}
	}
	return true
}
