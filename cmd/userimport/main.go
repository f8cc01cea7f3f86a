// Command userimport runs imports and user lookups against the configured
// backend from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/userimport/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		msg := core.MapError(err)
		fmt.Fprintf(os.Stderr, "error: %s (%s)\n", msg.Message, msg.Code)
		if msg.Action != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", msg.Action)
		}
		os.Exit(1)
	}
}
