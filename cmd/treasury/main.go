package main

import (
	"os"

	"github.com/treasury-pool/treasury/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
