package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelcraft/internal/history"
	"reelcraft/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show locally journaled pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			jobs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(historyColumns, historyRows(jobs)))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the stage events of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			job, err := store.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("job %s not found in history", args[0])
			}
			events, err := store.Events(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, struct {
					Job    *history.Job         `json:"job"`
					Events []history.StageEvent `json:"events"`
				}{job, events})
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(fmt.Sprintf("%s (%s)", job.Title, job.ID), colorize) {
				fmt.Fprintln(out, line)
			}
			for _, evt := range events {
				kind := statusInfo
				switch evt.Kind {
				case string(pipeline.EventCompleted):
					kind = statusOK
				case string(pipeline.EventFailed):
					kind = statusError
				}
				message := evt.Message
				if evt.Locator != "" {
					message = evt.Locator
				}
				label := stageLabel(pipeline.Stage(evt.Stage))
				fmt.Fprintf(out, "%s %s\n", evt.CreatedAt.Local().Format("15:04:05"), renderStatusLine(label, kind, message, colorize))
			}
			return nil
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every journaled run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
			return nil
		},
	})

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove runs not updated recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold")
	historyCmd.AddCommand(pruneCmd)

	return historyCmd
}

func historyRows(jobs []history.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.ErrorMessage
		if job.Status == history.StatusRendered {
			detail = job.FinalVideo
		}
		stage := job.LastStage
		if stage != "" {
			stage = stageLabel(pipeline.Stage(stage)) + " (" + strconv.Itoa(job.Step) + ")"
		}
		rows = append(rows, []string{job.ID, job.Title, string(job.Status), stage, humanize.Time(job.UpdatedAt), detail})
	}
	return rows
}
