// Package cli implements the MathQuest command-line interface using Cobra.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd(version string) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "mathquest",
		Short: "MathQuest badge requirement engine",
		Long: `MathQuest evaluates badge unlock requirements against a learner's
attempt history: counts, success rates, streaks, speed, daily activity,
exercise coverage and comebacks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newProgressCmd(),
		newEvaluateCmd(),
		newVersionCmd(version),
	)
	return root
}

// loadEnv loads variables from path without overriding the environment.
// A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
