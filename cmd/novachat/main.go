// Package main is the novachat CLI: a terminal front end for the
// storefront chat overlay. State lives under the user's state directory,
// so asks and sends survive restarts and deliver once a login token
// exists.
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
