// Package main provides the entry point for the documind CLI.
package main

import (
	"os"

	"github.com/t-simwa/documind-document-analyzer-sub000/cmd/documind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
