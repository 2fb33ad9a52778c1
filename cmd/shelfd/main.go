package main

import (
	"os"

	"github.com/shelfd/shelfd/cmd/shelfd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
