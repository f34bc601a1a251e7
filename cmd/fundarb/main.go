package main

import (
	"os"

	"github.com/wonny/fundarb/cmd/fundarb/commands"
)

// main is the entry point for the fundarb CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/fundarb [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
