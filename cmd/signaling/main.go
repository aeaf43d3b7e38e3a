// Package main is the entrypoint for the pit signaling relay.
package main

import "github.com/mossy-p/pit-signaling/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
