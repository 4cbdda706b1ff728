package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is the CLI build version.
const version = "0.1.0"

// main wires Cobra and executes the CLI.
func main() {
	rootCmd := &cobra.Command{
		Use:           "docpal",
		Short:         "docpal - documentation Q&A assistants over OpenRouter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newVersionCommand prints the build version.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docpal version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "docpal", version)
		},
	}
}
