package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/model"
)

var (
	summarizeDocument string
	summarizeSource   string
	summarizeForce    bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <project-id>",
	Short: "Summarize a project's documents and web sources",
	Long:  "Summarizes every document and web source of the project, or only the one named with --document or --source. Cached summaries are reused unless --force is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		projectID := args[0]
		if _, err := env.Projects.Get(ctx, projectID); err != nil {
			return err
		}

		type target struct {
			kind  model.EntityKind
			id    string
			label string
		}
		var targets []target
		switch {
		case summarizeDocument != "":
			targets = append(targets, target{model.EntityDocument, summarizeDocument, summarizeDocument})
		case summarizeSource != "":
			targets = append(targets, target{model.EntityWebSource, summarizeSource, summarizeSource})
		default:
			docs, err := env.Ingest.Documents(ctx, projectID)
			if err != nil {
				return err
			}
			for _, d := range docs {
				targets = append(targets, target{model.EntityDocument, d.ID, d.Filename})
			}
			srcs, err := env.Ingest.Sources(ctx, projectID)
			if err != nil {
				return err
			}
			for _, s := range srcs {
				targets = append(targets, target{model.EntityWebSource, s.ID, s.URL})
			}
		}

		var failed int
		for _, t := range targets {
			res, err := env.Summaries.Summarize(ctx, projectID, t.kind, t.id, summarizeForce)
			if err != nil {
				failed++
				zap.L().Error("summarize failed", zap.String("target", t.label), zap.Error(err))
				continue
			}
			state := "generated"
			if res.Cached {
				state = "cached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-8s chunks=%d  %s\n",
				t.kind, state, res.Summary.ChunkCount, t.label)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d summaries failed", failed, len(targets))
		}
		return nil
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeDocument, "document", "", "summarize only this document id")
	summarizeCmd.Flags().StringVar(&summarizeSource, "source", "", "summarize only this web source id")
	summarizeCmd.Flags().BoolVar(&summarizeForce, "force", false, "regenerate even when a cached summary exists")
	rootCmd.AddCommand(summarizeCmd)
}
