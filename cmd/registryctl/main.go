// Command registryctl is an operator tool for the achievement registry: it
// runs the assistant's filter extractor offline and mints development tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
