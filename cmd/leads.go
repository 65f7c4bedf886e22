package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var leadsLimit int

var leadsCmd = &cobra.Command{
	Use:   "leads [visitor-id]",
	Short: "List top leads, or show the latest lead for a visitor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			lead, err := st.LatestLead(ctx, args[0])
			if err != nil {
				return err
			}
			if lead == nil {
				cmd.PrintErrln("no lead for visitor", args[0])
				return nil
			}
			return enc.Encode(lead)
		}

		leads, err := st.TopLeads(ctx, leadsLimit)
		if err != nil {
			return err
		}
		return enc.Encode(leads)
	},
}

func init() {
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 10, "maximum leads to list")
	rootCmd.AddCommand(leadsCmd)
}
