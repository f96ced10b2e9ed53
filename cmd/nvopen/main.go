package main

import (
	"os"

	"github.com/nvopen/nvopen/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
