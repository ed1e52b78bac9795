// Command dossier answers questions about a legal document archive using
// retrieval-augmented generation.
package main

import (
	"fmt"
	"os"

	"github.com/ahrav/go-dossier/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
