// Command h5tree inspects and edits h5tree container files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "h5tree: %v\n", err)
		os.Exit(1)
	}
}
