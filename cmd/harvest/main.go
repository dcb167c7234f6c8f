package main

import (
	"os"

	"github.com/castleryder/dividend-harvest/cmd/harvest/commands"
)

// main is the entry point for the harvest CLI
// ⭐ Single CLI entry point: go run ./cmd/harvest [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
