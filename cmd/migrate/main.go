// Command migrate copies the legacy key-value household documents into the
// relational tables and inspects past runs.
package main

import (
	"fmt"
	"os"

	"github.com/farxc/household-migrator/internal/env"
)

func main() {
	if err := env.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
