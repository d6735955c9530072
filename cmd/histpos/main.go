package main

import (
	"os"

	"github.com/wonny/histpos/cmd/histpos/commands"
)

// main is the entry point for the histpos CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/histpos [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
