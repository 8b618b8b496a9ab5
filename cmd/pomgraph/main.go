package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pomgraph/pomgraph/maven/cache"
)

func main() {
	defer func() {
		_ = cache.CloseAll()
	}()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
