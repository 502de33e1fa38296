package main

import (
	"os"

	"github.com/sincaw/chred/cmd/ctrl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
