// Package main provides the entry point for the facet CLI.
package main

import (
	"fmt"
	"os"

	"github.com/facetdb/facet/cmd/facet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
