// Command paladium is the command-line client for the annotation backend.
package main

import (
	"os"

	"github.com/mmynk/paladium/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
