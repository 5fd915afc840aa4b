package main

import (
	"os"
)

func main() {
	if err := newRootCmd(buildPipeline).Execute(); err != nil {
		os.Exit(1)
	}
}
