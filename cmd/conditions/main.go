package main

import (
	"os"

	"github.com/solatis/conditions/cmd/conditions/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
