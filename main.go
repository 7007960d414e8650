package main

import (
	"os"

	"github.com/zidanhm/switchboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
