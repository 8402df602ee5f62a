package main

import (
	"context"
	"os"

	"goflare.io/urlguard/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
