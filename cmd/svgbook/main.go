package main

import (
	"context"
	"os"

	"svgbook/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
