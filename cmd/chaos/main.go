// Package main is the single-binary entrypoint for the chaos console.
package main

import "github.com/chaostheorist/chaos/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
