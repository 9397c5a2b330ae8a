package main

import (
	"os"

	"cgraph/cmd/cgraph/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
