// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package protocol

import (
	"io"
	"strconv"
)

// Status is a response status. Its value is the numeric status code.
type Status int

const (
	StatusOK                  Status = 200
	StatusCreated             Status = 201
	StatusBadRequest          Status = 400
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
)

var reasons = map[Status]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// Code returns the numeric status code.
func (s Status) Code() int {
	return int(s)
}

// Reason returns the reason phrase.
func (s Status) Reason() string {
	return reasons[s]
}

// MediaType is the Content-Type of a response body.
type MediaType int

const (
	PlainText MediaType = iota
	OctetStream
)

// String implements the [fmt.Stringer] interface.
func (m MediaType) String() string {
	switch m {
	case PlainText:
		return "text/plain"
	case OctetStream:
		return "application/octet-stream"
	default:
		return "MediaType(" + strconv.Itoa(int(m)) + ")"
	}
}

// Body is a response payload and its media type.
type Body struct {
	Payload []byte
	Media   MediaType
}

// Response is produced once by the router and written once to the connection.
type Response struct {
	Status Status
	Body   *Body
}

// Empty returns a response without a body.
func Empty(status Status) Response {
	return Response{Status: status}
}

// Text returns a text/plain response.
func Text(status Status, s string) Response {
	return Response{
		Status: status,
		Body: &Body{
			Payload: []byte(s),
			Media:   PlainText,
		},
	}
}

// Octets returns an application/octet-stream response.
func Octets(status Status, b []byte) Response {
	return Response{
		Status: status,
		Body: &Body{
			Payload: b,
			Media:   OctetStream,
		},
	}
}

// Bytes returns the wire form of the response. Every response, with or
// without a body, ends in CRLF.
func (r Response) Bytes() []byte {
	b := make([]byte, 0, 64+r.bodyLen())
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.Status.Code()), 10)
	b = append(b, ' ')
	b = append(b, r.Status.Reason()...)
	b = append(b, crlf...)

	if r.Body != nil {
		b = append(b, "Content-Type: "...)
		b = append(b, r.Body.Media.String()...)
		b = append(b, crlf...)
		b = append(b, "Content-Length: "...)
		b = strconv.AppendInt(b, int64(len(r.Body.Payload)), 10)
		b = append(b, crlf...)
		b = append(b, crlf...)
		b = append(b, r.Body.Payload...)
	}

	return append(b, crlf...)
}

func (r Response) bodyLen() int {
	if r.Body == nil {
		return 0
	}
	return len(r.Body.Payload)
}

// WriteTo implements the [io.WriterTo] interface.
func (r Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}
