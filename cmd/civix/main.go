// Command civix resolves ZIP codes to political jurisdictions and serves the
// resolver over HTTP.
package main

import (
	"os"

	"github.com/bison808/civix/cmd/civix/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
