package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipminer/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var failureLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress for the configured storage directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			tracker, err := state.Open(cfg.StateDir())
			if err != nil {
				return err
			}
			defer tracker.Close()

			out := cmd.OutOrStdout()
			counts := [][]string{
				{"Words processed", strconv.Itoa(tracker.Count(state.SetProcessedWords))},
				{"Clips committed", strconv.Itoa(tracker.Count(state.SetCommittedSlugs))},
				{"Failed attempts", strconv.Itoa(len(tracker.Failures()))},
			}
			fmt.Fprintln(out, renderTable([]string{"Ledger", "Count"}, counts, []columnAlignment{alignLeft, alignRight}))

			failures := tracker.Failures()
			if len(failures) == 0 {
				return nil
			}
			if failureLimit > 0 && len(failures) > failureLimit {
				failures = failures[len(failures)-failureLimit:]
			}

			rows := make([][]string, 0, len(failures))
			for _, failure := range failures {
				rows = append(rows, []string{
					failure.Timestamp.Local().Format("2006-01-02 15:04"),
					failure.Slug,
					failure.Stage,
					failure.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Slug", "Stage", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVar(&failureLimit, "failures", 10, "How many recent failures to show (0 for all)")
	return cmd
}
