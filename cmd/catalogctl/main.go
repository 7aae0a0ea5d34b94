package main

import (
	"os"

	"github.com/Skotchmaster/product_catalog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
