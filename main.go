package main

import (
	"os"

	"github.com/QatreenFatima/ai-book/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
