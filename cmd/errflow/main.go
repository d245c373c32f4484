package main

import (
	"os"

	"github.com/ib-77/errflow/cmd/errflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
