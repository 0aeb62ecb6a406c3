package main

import (
	"os"

	"github.com/fleetsight/fleetsight/cmd/fleetsight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
