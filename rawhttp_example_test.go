// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rawhttp

import (
	"context"
	"fmt"
	"net"

	"github.com/z5labs/rawhttp/lifecycle"
)

func Example() {
	addr := BuilderOf(net.JoinHostPort("127.0.0.1", "4221"))

	buildRuntime := Map(addr, func(ctx context.Context, addr string) (RuntimeFunc, error) {
		lc, ok := lifecycle.FromContext(ctx)
		if ok {
			lc.OnPostRun(lifecycle.HookFunc(func(ctx context.Context) error {
				fmt.Println("closed", addr)
				return nil
			}))
		}

		rt := func(ctx context.Context) error {
			fmt.Println("serving", addr)
			return nil
		}
		return rt, nil
	})

	err := RecoverPanics(DefaultRunner[RuntimeFunc]()).Run(context.Background(), buildRuntime)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Output:
	// serving 127.0.0.1:4221
	// closed 127.0.0.1:4221
}

func ExampleBind() {
	port := BuilderOf(0)

	addr := Bind(port, func(port int) Builder[string] {
		if port == 0 {
			return BuilderOf("127.0.0.1:4221")
		}
		return BuilderOf(fmt.Sprintf("127.0.0.1:%d", port))
	})

	fmt.Println(MustBuild(context.Background(), addr))
	// Output:
	// 127.0.0.1:4221
}
