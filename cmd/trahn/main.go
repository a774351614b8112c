package main

import (
	"os"

	"github.com/kjannette/trahn-dca/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
