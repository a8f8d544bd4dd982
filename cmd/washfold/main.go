package main

import (
	"os"

	"github.com/washfold/washfold/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
