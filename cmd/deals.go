package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	dealsLimit  int
	dealsOffset int
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Inspect stored deals",
}

var dealsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		deals, err := env.Store.ListDeals(ctx, dealsLimit, dealsOffset)
		if err != nil {
			return err
		}
		for _, d := range deals {
			cmd.Printf("%s\t%d fields\t%d facts\t%d docs\t%s\n",
				d.ID, d.Fields, d.Facts, d.Documents, d.UpdatedAt.Format("2006-01-02 15:04"))
		}
		if len(deals) == 0 {
			cmd.Println("no deals")
		}
		return nil
	},
}

var dealsShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Show a deal's resolved fields, facts, and processing ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		deal, err := env.Store.GetDeal(ctx, args[0])
		if err != nil {
			return err
		}
		if deal == nil {
			return eris.Errorf("deal not found: %s", args[0])
		}

		records, err := env.Store.ListProcessingRecords(ctx, args[0])
		if err != nil {
			return err
		}

		out := struct {
			Deal    any `json:"deal"`
			Records any `json:"processing_records"`
		}{deal, records}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	dealsListCmd.Flags().IntVar(&dealsLimit, "limit", 50, "maximum deals to list")
	dealsListCmd.Flags().IntVar(&dealsOffset, "offset", 0, "listing offset")
	dealsCmd.AddCommand(dealsListCmd)
	dealsCmd.AddCommand(dealsShowCmd)
	rootCmd.AddCommand(dealsCmd)
}
