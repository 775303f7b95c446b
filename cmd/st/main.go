package main

import (
	"os"

	"github.com/bnema/session-tokens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
