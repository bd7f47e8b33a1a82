package main

import (
	"os"

	"github.com/jmcampanini/github-watcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
