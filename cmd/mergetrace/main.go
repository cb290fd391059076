package main

import (
	"os"

	"github.com/moolen/mergetrace/cmd/mergetrace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
