// Package main is the single-binary entrypoint for Distri.
package main

import "github.com/distri-network/distri/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
