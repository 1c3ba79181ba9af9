// Command docqa ingests documents into an owner-scoped vector index and
// answers questions about them with streamed citations. It provides a CLI
// (via Cobra) and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
