package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/rfpdesk/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the company profile and knowledge base",
}

var kbImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a company profile and knowledge entries from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		seed, err := knowledge.LoadSeed(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := knowledge.NewService(st).Import(ctx, seed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "company updated: %t, entries added: %d, skipped: %d\n",
			res.CompanyUpdated, res.Added, res.Skipped)
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := knowledge.NewService(st).List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Category, e.Title)
		}
		return w.Flush()
	},
}

func init() {
	kbCmd.AddCommand(kbImportCmd, kbListCmd)
	rootCmd.AddCommand(kbCmd)
}

