// Package main provides the entry point for the navigator CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/cmd/navigator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
