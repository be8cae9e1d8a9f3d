package main

import (
	"os"

	"github.com/publicis/arena/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
