// Package main provides the govlens binary entry point.
// Govlens aggregates governance proposals across DeFi protocols into
// one normalized feed.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
