// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package slogfield

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJSONHandler(t *testing.T) {
	testCases := []struct {
		Name     string
		Attr     slog.Attr
		Key      string
		Expected any
	}{
		{
			Name:     "duration",
			Attr:     Duration("value", 5*time.Second),
			Key:      "value",
			Expected: float64(5 * time.Second),
		},
		{
			Name:     "error",
			Attr:     Error(errors.New("boom")),
			Key:      "error",
			Expected: "boom",
		},
		{
			Name:     "string",
			Attr:     String("value", "hello"),
			Key:      "value",
			Expected: "hello",
		},
		{
			Name:     "int",
			Attr:     Int("value", 42),
			Key:      "value",
			Expected: float64(42),
		},
		{
			Name:     "addr",
			Attr:     Addr("value", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4221}),
			Key:      "value",
			Expected: "127.0.0.1:4221",
		},
		{
			Name:     "nil addr",
			Attr:     Addr("value", nil),
			Key:      "value",
			Expected: "",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
			log.LogAttrs(context.Background(), slog.LevelInfo, "test", testCase.Attr)

			var record map[string]any
			err := json.Unmarshal(buf.Bytes(), &record)
			require.Nil(t, err)
			require.Equal(t, testCase.Expected, record[testCase.Key])
		})
	}
}
