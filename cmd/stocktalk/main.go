// Command stocktalk is the entry point for the StockTalk furniture inventory
// assistant. It provides a CLI interface (via Cobra) and an optional HTTP
// server exposing the chat API.
package main

import (
	"fmt"
	"os"

	"github.com/rowanv/stocktalk/cmd/stocktalk/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
