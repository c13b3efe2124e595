// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultReadBufferSize is used by [ReadRequest] when given a non-positive size.
const DefaultReadBufferSize = 1024

const crlf = "\r\n"

var headerTerminator = []byte(crlf + crlf)

var (
	// ErrConnectionClosed means the peer closed the stream before the
	// header terminator arrived.
	ErrConnectionClosed = errors.New("connection closed before request headers were complete")

	// ErrIncompleteBody means the stream ended before Content-Length body
	// bytes arrived.
	ErrIncompleteBody = errors.New("connection closed before request body was complete")
)

// ReadError wraps a transport failure other than the peer closing the stream.
type ReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read request: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReadError) Unwrap() error {
	return e.Cause
}

// RequestHeaders is the subset of a request head the server understands.
type RequestHeaders struct {
	Method    string
	Path      string
	UserAgent string

	// ContentLength is -1 when the header was absent or invalid.
	ContentLength int64
}

// Request is a parsed request. Body is nil unless ContentLength was positive.
type Request struct {
	Headers RequestHeaders
	Body    []byte
}

// ReadRequest reads one request from r, bufSize bytes at a time.
func ReadRequest(r io.Reader, bufSize int) (*Request, error) {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}

	head, rest, err := readHead(r, bufSize)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Headers: parseHead(head),
	}
	if req.Headers.ContentLength <= 0 {
		return req, nil
	}

	req.Body, err = readBody(io.MultiReader(bytes.NewReader(rest), r), req.Headers.ContentLength)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// readHead accumulates chunks until the header terminator shows up. It
// returns the head without the terminator and whatever followed it in the
// last chunk, which is the start of the body.
func readHead(r io.Reader, bufSize int) (head, rest []byte, err error) {
	var acc []byte
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// the terminator may straddle the previous chunk
			from := max(0, len(acc)-len(headerTerminator)+1)
			acc = append(acc, buf[:n]...)
			if i := bytes.Index(acc[from:], headerTerminator); i >= 0 {
				end := from + i
				return acc[:end], acc[end+len(headerTerminator):], nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrConnectionClosed
		}
		if err != nil {
			return nil, nil, ReadError{Cause: err}
		}
	}
}

func readBody(r io.Reader, n int64) ([]byte, error) {
	var body bytes.Buffer
	_, err := io.CopyN(&body, r, n)
	if errors.Is(err, io.EOF) {
		return nil, ErrIncompleteBody
	}
	if err != nil {
		return nil, ReadError{Cause: err}
	}
	return body.Bytes(), nil
}

func parseHead(head []byte) RequestHeaders {
	h := RequestHeaders{
		ContentLength: -1,
	}

	lines := strings.Split(string(head), crlf)
	if method, path, ok := parseRequestLine(lines[0]); ok {
		h.Method = method
		h.Path = path
		lines = lines[1:]
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "User-Agent:"):
			h.UserAgent = headerValue(line)
		case strings.HasPrefix(line, "Content-Length:"):
			n, err := strconv.ParseInt(headerValue(line), 10, 64)
			if err == nil && n >= 0 {
				h.ContentLength = n
			}
		}
	}
	return h
}

// parseRequestLine takes the method and the path token after it. Anything
// after the path, e.g. the protocol version, is ignored. A line with fewer
// than two fields, or whose first field is not a token, is not a request line.
func parseRequestLine(line string) (method, path string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !isToken(fields[0]) {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func headerValue(line string) string {
	parts := strings.Split(line, ": ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func isToken(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return s != ""
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
