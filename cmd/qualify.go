package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify <visitor-id> <session-id>",
	Short: "Run qualification for a session and print the scored lead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Qualify(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "\n%s\n%s\n", result.Summary, result.ActionText)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qualifyCmd)
}
