package main

import (
	"os"

	"github.com/alertme/runguard/cmd/runguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
