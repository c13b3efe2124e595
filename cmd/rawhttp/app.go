// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/z5labs/rawhttp"
	"github.com/z5labs/rawhttp/connection"
	"github.com/z5labs/rawhttp/files"
	"github.com/z5labs/rawhttp/internal/otelconfig"
	"github.com/z5labs/rawhttp/internal/otelslog"
	"github.com/z5labs/rawhttp/internal/slogfield"
	"github.com/z5labs/rawhttp/lifecycle"
	"github.com/z5labs/rawhttp/probe"
	"github.com/z5labs/rawhttp/router"
	"github.com/z5labs/rawhttp/server"
	"github.com/z5labs/rawhttp/settings"
	"github.com/z5labs/rawhttp/shutdown"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const serviceName = "rawhttp"

type rootFlags struct {
	directory  string
	configPath string
	trace      bool
	logLevel   string
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Serve HTTP/1.1 requests over raw TCP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(stderr, f.logLevel)
			if err != nil {
				return err
			}

			runner := rawhttp.RecoverPanics(rawhttp.DefaultRunner[rawhttp.Runtime]())
			err = runner.Run(cmd.Context(), buildRuntime(f, stderr, log))
			if err != nil {
				log.ErrorContext(cmd.Context(), "server exited", slogfield.Error(err))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.directory, "directory", "", "base directory for /files/ requests")
	cmd.Flags().StringVar(&f.configPath, "config", "", "optional YAML settings file, re-read on every reload")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "write connection spans to stderr")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "one of debug, info, warn or error")

	cmd.AddCommand(newProbeCmd(stderr, &f.logLevel))
	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		return nil, err
	}
	return otelslog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}),
		otelslog.SpanEvents(slog.LevelWarn),
	), nil
}

func buildTracerProvider(f rootFlags, stderr io.Writer) rawhttp.Builder[trace.TracerProvider] {
	return rawhttp.BuilderFunc[trace.TracerProvider](func(ctx context.Context) (trace.TracerProvider, error) {
		if !f.trace {
			return otelconfig.Noop.Init(ctx)
		}

		tp, err := otelconfig.Local(
			otelconfig.ServiceName(serviceName),
			otelconfig.Out(stderr),
		).Init(ctx)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)

		if lc, ok := lifecycle.FromContext(ctx); ok {
			lc.OnPostRun(lifecycle.HookFunc(func(ctx context.Context) error {
				return otelconfig.Shutdown(ctx, tp)
			}))
		}
		return tp, nil
	})
}

func buildRuntime(f rootFlags, stderr io.Writer, log *slog.Logger) rawhttp.Builder[rawhttp.Runtime] {
	return rawhttp.Bind(buildTracerProvider(f, stderr), func(tp trace.TracerProvider) rawhttp.Builder[rawhttp.Runtime] {
		return rawhttp.BuilderFunc[rawhttp.Runtime](func(ctx context.Context) (rawhttp.Runtime, error) {
			signals := shutdown.NewChannel()

			h := connection.NewHandler(
				router.New(router.StaticDirectory(f.directory), files.OS(), router.Logger(log)),
				connection.Logger(log),
				connection.TracerProvider(tp),
			)
			srv, err := server.New(
				ctx,
				server.Provider(settings.NewEnvProvider(settings.File(f.configPath))),
				server.Handler(h),
				server.Signals(signals),
				server.Logger(log),
			)
			if err != nil {
				return nil, err
			}

			coord := shutdown.NewCoordinator(signals, shutdown.Logger(log))
			return serve(srv, coord), nil
		})
	})
}

type coordinator interface {
	Run(context.Context) error
}

// serve runs the signal coordinator alongside the server and stops the
// coordinator once the server has stopped.
func serve(srv rawhttp.Runtime, coord coordinator) rawhttp.Runtime {
	return rawhttp.RuntimeFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return coord.Run(gctx)
		})
		g.Go(func() error {
			defer cancel()
			return srv.Run(gctx)
		})
		return g.Wait()
	})
}

func newProbeCmd(stderr io.Writer, logLevel *string) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		retries int
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Exit 0 if a server answers GET / with 200",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zapcore.ParseLevel(*logLevel)
			if err != nil {
				return err
			}
			log := zap.New(zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(stderr),
				lvl,
			))
			defer func() {
				// stderr is not always syncable
				_ = log.Sync()
			}()

			client := probe.NewClient(
				probe.ClientTimeout(timeout),
				probe.CircuitBreaker(probe.CircuitName("probe"), probe.CircuitLogger(log)),
				probe.RetryRequests(probe.MaxRetries(retries), probe.RetryAttemptLogger(log)),
			)
			err = probe.Check(cmd.Context(), client, addr)
			if err != nil {
				log.Error("probe failed", zap.String("addr", addr), zap.Error(err))
				return errors.Join(errProbeFailed, err)
			}
			log.Info("probe succeeded", zap.String("addr", addr))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", net.JoinHostPort(settings.DefaultHost, settings.DefaultPort), "host:port of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout of a single attempt")
	cmd.Flags().IntVar(&retries, "retries", 2, "attempts after the first one before giving up")
	return cmd
}

var errProbeFailed = errors.New("probe failed")
