// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shutdown

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	mu         sync.Mutex
	registered map[os.Signal]chan<- os.Signal
	stopped    int
	ready      chan struct{}
}

func newFakeSignals(n int) *fakeSignals {
	return &fakeSignals{
		registered: make(map[os.Signal]chan<- os.Signal),
		ready:      make(chan struct{}, n),
	}
}

func (f *fakeSignals) notify(c chan<- os.Signal, sigs ...os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sig := range sigs {
		f.registered[sig] = c
	}
	f.ready <- struct{}{}
}

func (f *fakeSignals) stop(c chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeSignals) raise(sig os.Signal) {
	f.mu.Lock()
	c := f.registered[sig]
	f.mu.Unlock()
	c <- sig
}

// start runs a coordinator over fake signals and waits for every producer
// to register.
func start(t *testing.T) (*fakeSignals, chan Signal, context.CancelFunc, <-chan error) {
	t.Helper()

	fake := newFakeSignals(3)
	out := NewChannel()
	c := NewCoordinator(out, Notify(fake.notify, fake.stop))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-fake.ready:
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatal("producers did not register")
		}
	}
	return fake, out, cancel, errCh
}

func receive(t *testing.T, out <-chan Signal) Signal {
	t.Helper()

	select {
	case sig := <-out:
		return sig
	case <-time.After(5 * time.Second):
		t.Fatal("no signal received")
		return nil
	}
}

func TestNewChannel(t *testing.T) {
	ch := NewChannel()
	require.Equal(t, 1, cap(ch))
}

func TestSend(t *testing.T) {
	t.Run("will deliver the signal", func(t *testing.T) {
		ch := NewChannel()

		err := Send(context.Background(), ch, ErrorExit{Code: 7})
		require.Nil(t, err)
		require.Equal(t, ErrorExit{Code: 7}, <-ch)
	})

	t.Run("will return the context error", func(t *testing.T) {
		t.Run("if the channel is full and the context is done", func(t *testing.T) {
			ch := NewChannel()
			ch <- NormalExit{}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := Send(ctx, ch, ReloadConfig{})
			require.ErrorIs(t, err, context.Canceled)
			require.Equal(t, NormalExit{}, <-ch)
		})
	})
}

func TestCoordinator_Run(t *testing.T) {
	t.Run("will translate signals", func(t *testing.T) {
		testCases := []struct {
			Name     string
			Raised   os.Signal
			Expected Signal
		}{
			{
				Name:     "interrupt into normal exit",
				Raised:   os.Interrupt,
				Expected: NormalExit{},
			},
			{
				Name:     "terminate into normal exit",
				Raised:   syscall.SIGTERM,
				Expected: NormalExit{},
			},
			{
				Name:     "hangup into reload config",
				Raised:   syscall.SIGHUP,
				Expected: ReloadConfig{},
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				fake, out, cancel, errCh := start(t)
				defer cancel()

				fake.raise(testCase.Raised)
				require.Equal(t, testCase.Expected, receive(t, out))

				cancel()
				require.Nil(t, <-errCh)
			})
		}
	})

	t.Run("will keep producing after a signal", func(t *testing.T) {
		fake, out, cancel, errCh := start(t)
		defer cancel()

		fake.raise(syscall.SIGHUP)
		require.Equal(t, ReloadConfig{}, receive(t, out))
		fake.raise(syscall.SIGHUP)
		require.Equal(t, ReloadConfig{}, receive(t, out))
		fake.raise(os.Interrupt)
		require.Equal(t, NormalExit{}, receive(t, out))

		cancel()
		require.Nil(t, <-errCh)
	})

	t.Run("will close the channel once every producer exits", func(t *testing.T) {
		fake, out, cancel, errCh := start(t)

		cancel()
		require.Nil(t, <-errCh)

		_, ok := <-out
		require.False(t, ok)

		fake.mu.Lock()
		defer fake.mu.Unlock()
		require.Equal(t, 3, fake.stopped)
	})

	t.Run("will not block a producer on a full channel", func(t *testing.T) {
		fake, out, cancel, errCh := start(t)

		fake.raise(syscall.SIGHUP)
		fake.raise(syscall.SIGTERM)

		// give the second producer time to block on the full channel
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			require.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator blocked on a full channel")
		}

		n := 0
		for range out {
			n++
		}
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, 2)
	})
}

func TestSignal_String(t *testing.T) {
	require.Equal(t, "normal exit", NormalExit{}.String())
	require.Equal(t, "error exit(7)", ErrorExit{Code: 7}.String())
	require.Equal(t, "reload config", ReloadConfig{}.String())
}
