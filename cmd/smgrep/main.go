// Command smgrep is the CLI front-end: it spawns/talks to the per-store
// daemon over its Unix socket and never touches the index files directly.
package main

import (
	"fmt"
	"os"

	"github.com/aman-cerp/smgrep/cmd/smgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smgrep:", err)
		os.Exit(1)
	}
}
