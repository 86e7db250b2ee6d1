//go:build mage

// Package main provides build targets for tripstate using Mage.
//
// Usage:
//
//	mage build          Compile tripctl to bin/ with the version stamped
//	mage install        Install tripctl to GOPATH/bin
//	mage test:all       Run every test
//	mage test:race      Run every test with the race detector
//	mage test:cover     Write coverage.out and print the total
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
package main

const (
	binGo      = "go"
	binaryName = "tripctl"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tripctl"
	versionVar = "github.com/mesh-intelligence/tripstate/internal/cli.Version"
	coverFile  = "coverage.out"
)
