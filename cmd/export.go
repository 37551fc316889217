package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rfpdesk/internal/export"
)

var (
	exportTemplate string
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project response as a Word document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		p, err := env.Projects.Get(ctx, args[0])
		if err != nil {
			return err
		}
		tmpl := export.ForProject(p.ProjectType)
		if exportTemplate != "" {
			if tmpl, err = export.ParseTemplate(exportTemplate); err != nil {
				return err
			}
		}

		f, err := env.Export.Generate(ctx, p.ID, tmpl)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = f.Name
		} else if info, err := os.Stat(out); err == nil && info.IsDir() {
			out = filepath.Join(out, f.Name)
		}
		if err := os.WriteFile(out, f.Data, 0o644); err != nil { //nolint:gosec
			return eris.Wrapf(err, "write %s", out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(f.Data))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTemplate, "template", "", "rfp, rfi or form470 (default from project type)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory")
	rootCmd.AddCommand(exportCmd)
}
