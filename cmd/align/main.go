package main

import (
	"os"

	"github.com/neonvoidvibes/align/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
