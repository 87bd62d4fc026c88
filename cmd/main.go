package main

import (
	"os"

	"quiz-session-host/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
