// Command labelhost is a host for the label widget: it runs action requests
// against a stored group and inspects what the widget persisted.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
