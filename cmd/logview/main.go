package main

import (
	"os"

	"github.com/solatis/logview/cmd/logview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
