package main

import (
	"os"

	"github.com/jayminwest/kota-gateway/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
