package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/project"
)

var projectArchived bool

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect and purge projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		projects, err := project.NewService(st).List(ctx, model.ProjectFilter{Archived: &projectArchived})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tCREATED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.ProjectType, p.Name, p.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var projectPurgeCmd = &cobra.Command{
	Use:   "purge <project-id>",
	Short: "Permanently delete a project and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := project.NewService(st).Purge(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", args[0])
		return nil
	},
}

func init() {
	projectListCmd.Flags().BoolVar(&projectArchived, "archived", false, "list archived projects instead of active ones")
	projectCmd.AddCommand(projectListCmd, projectPurgeCmd)
	rootCmd.AddCommand(projectCmd)
}
