// Package main provides the entry point for the imoto CLI.
package main

import (
	"github.com/Combine-Capital/imoto/internal/cli"
)

func main() {
	cli.Execute()
}
