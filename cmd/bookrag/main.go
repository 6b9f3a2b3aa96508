package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"bookrag/cmd/bookrag/commands"
)

func main() {
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
