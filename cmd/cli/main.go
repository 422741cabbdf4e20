// Package main is the entry point for the lightdash CLI binary.
package main

import (
	"os"

	cli "github.com/yu-iskw/lightdash/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
