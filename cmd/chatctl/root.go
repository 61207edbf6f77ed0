package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ai-concierge/internal/config"
)

var (
	envFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Talk to the concierge and inspect its usage",
	Long: `chatctl runs the conversation service in-process.

  chatctl chat --user alice        # interactive conversation on stdin
  chatctl report --date 2024-01-15 # usage report from the trace log`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && verbose {
			log.Printf("Warning: %s not loaded: %v", envFile, err)
		}
		if !verbose {
			log.SetOutput(io.Discard)
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log trace steps to stderr")
	rootCmd.AddCommand(chatCmd, reportCmd)
}
