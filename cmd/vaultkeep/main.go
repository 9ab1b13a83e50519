// Command vaultkeep starts the synchronization server and provides the
// operator utilities named in spec section 6 (serve, hash, version).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
