package main

import (
	"os"

	"github.com/hackrx-qa/docqa/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
