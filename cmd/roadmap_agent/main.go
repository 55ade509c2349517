// Package main is the entry point for the roadmap agent CLI and server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roadmap_agent",
	Short: "Personalized learning roadmap generator",
	Long:  "roadmap_agent turns a learning topic into a multi-session roadmap: it interviews the learner, designs an outline, researches every session, enriches them with videos, and revises the result until it passes validation.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
