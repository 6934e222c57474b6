// Package main is the entry point for the serpent CLI.
package main

import (
	"os"

	"github.com/FranksOps/serpent/cmd/serpent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
