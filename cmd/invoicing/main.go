// Command invoicing serves the invoicing BFA and offers reporting and
// maintenance commands against the configured backend.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// --- Load .env file (for local development); the environment wins ---
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
