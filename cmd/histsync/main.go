// Command histsync keeps shell aliases, variables and settings in an
// encrypted record log and syncs it between machines.
package main

import (
	"os"

	"github.com/roach88/histsync/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
