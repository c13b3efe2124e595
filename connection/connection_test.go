// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/z5labs/rawhttp/internal/try"
	"github.com/z5labs/rawhttp/protocol"
	"github.com/z5labs/rawhttp/settings"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// exchange sends raw to a loopback connection served by h and returns
// everything the handler wrote back along with the handler's error.
func exchange(t *testing.T, h *Handler, s *settings.Settings, raw string) (string, error) {
	t.Helper()

	ls, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer ls.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		conn, err := ls.Accept()
		if err != nil {
			errCh <- err
			return
		}
		errCh <- h.Handle(ctx, conn, s)
	}()

	conn, err := net.Dial("tcp", ls.Addr().String())
	require.Nil(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, raw)
	require.Nil(t, err)
	err = conn.(*net.TCPConn).CloseWrite()
	require.Nil(t, err)

	err = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.Nil(t, err)
	b, err := io.ReadAll(conn)
	require.Nil(t, err)

	select {
	case <-ctx.Done():
		t.Fatal("handler did not return")
		return "", nil
	case err := <-errCh:
		return string(b), err
	}
}

func echoRouter() Router {
	return RouterFunc(func(_ context.Context, req *protocol.Request) protocol.Response {
		if req.Body != nil {
			return protocol.Octets(protocol.StatusCreated, req.Body)
		}
		return protocol.Text(protocol.StatusOK, req.Headers.Method+" "+req.Headers.Path)
	})
}

func TestHandler_Handle(t *testing.T) {
	t.Run("will write the routed response", func(t *testing.T) {
		testCases := []struct {
			Name     string
			Request  string
			Response string
		}{
			{
				Name:     "without a body",
				Request:  "GET /echo/abc HTTP/1.1\r\nHost: localhost\r\n\r\n",
				Response: "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 13\r\n\r\nGET /echo/abc\r\n",
			},
			{
				Name:     "with a body",
				Request:  "POST /files/a HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello",
				Response: "HTTP/1.1 201 Created\r\nContent-Type: application/octet-stream\r\nContent-Length: 5\r\n\r\nhello\r\n",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				h := NewHandler(echoRouter())

				resp, err := exchange(t, h, settings.Default(), testCase.Request)
				require.Nil(t, err)
				require.Equal(t, testCase.Response, resp)
			})
		}
	})

	t.Run("will parse with the buffer size of the settings", func(t *testing.T) {
		s, err := settings.New("127.0.0.1", "0", 1)
		require.Nil(t, err)

		h := NewHandler(echoRouter())

		resp, err := exchange(t, h, s, "GET / HTTP/1.1\r\nUser-Agent: x\r\n\r\n")
		require.Nil(t, err)
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nGET /\r\n", resp)
	})

	t.Run("will respond with an internal server error", func(t *testing.T) {
		testCases := []struct {
			Name    string
			Request string
		}{
			{
				Name:    "if the peer closes before the header terminator",
				Request: "GET / HTTP/1.1\r\n",
			},
			{
				Name:    "if the peer sends nothing",
				Request: "",
			},
			{
				Name:    "if the body is shorter than the content length",
				Request: "POST /files/a HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc",
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				routed := false
				h := NewHandler(RouterFunc(func(context.Context, *protocol.Request) protocol.Response {
					routed = true
					return protocol.Empty(protocol.StatusOK)
				}))

				resp, err := exchange(t, h, settings.Default(), testCase.Request)
				require.Nil(t, err)
				require.Equal(t, "HTTP/1.1 500 Internal Server Error\r\n\r\n", resp)
				require.False(t, routed)
			})
		}
	})

	t.Run("will return a panic as an error", func(t *testing.T) {
		h := NewHandler(RouterFunc(func(context.Context, *protocol.Request) protocol.Response {
			panic("router exploded")
		}))

		resp, err := exchange(t, h, settings.Default(), "GET / HTTP/1.1\r\n\r\n")
		require.Empty(t, resp)

		var perr try.PanicError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, "router exploded", perr.Value)
	})

	t.Run("will return a write error", func(t *testing.T) {
		t.Run("if the peer is gone", func(t *testing.T) {
			server, client := net.Pipe()
			client.Close()

			h := NewHandler(RouterFunc(func(context.Context, *protocol.Request) protocol.Response {
				return protocol.Empty(protocol.StatusOK)
			}))

			err := h.Handle(context.Background(), server, settings.Default())

			var werr WriteError
			require.ErrorAs(t, err, &werr)
			require.True(t, errors.Is(err, io.ErrClosedPipe))
		})
	})
}

func TestHandler_Handle_Span(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	t.Run("will record the request and status", func(t *testing.T) {
		exporter.Reset()
		h := NewHandler(echoRouter(), TracerProvider(tp))

		_, err := exchange(t, h, settings.Default(), "GET /echo/x HTTP/1.1\r\n\r\n")
		require.Nil(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		require.Equal(t, "connection", spans[0].Name)

		attrs := attribute.NewSet(spans[0].Attributes...)
		method, ok := attrs.Value("http.method")
		require.True(t, ok)
		require.Equal(t, "GET", method.AsString())
		target, ok := attrs.Value("http.target")
		require.True(t, ok)
		require.Equal(t, "/echo/x", target.AsString())
		status, ok := attrs.Value("http.status_code")
		require.True(t, ok)
		require.Equal(t, int64(200), status.AsInt64())
		peer, ok := attrs.Value("net.peer.addr")
		require.True(t, ok)
		require.NotEmpty(t, peer.AsString())
	})

	t.Run("will mark the span as failed", func(t *testing.T) {
		exporter.Reset()
		h := NewHandler(RouterFunc(func(context.Context, *protocol.Request) protocol.Response {
			panic("boom")
		}), TracerProvider(tp))

		_, err := exchange(t, h, settings.Default(), "GET / HTTP/1.1\r\n\r\n")
		require.Error(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		require.Equal(t, codes.Error, spans[0].Status.Code)
	})
}
