// Command wellstep resamples well production histories onto fixed time
// grids and flattens Nexus plot files without a database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
