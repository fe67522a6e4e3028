// Package main is the single-binary entrypoint for MathQuest.
package main

import "github.com/mathquest/mathquest/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
