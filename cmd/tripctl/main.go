// Package main provides the tripctl CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/tripstate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
