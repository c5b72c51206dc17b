package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs the service has run for this account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			id, err := a.requireIdentity()
			if err != nil {
				return userMessage(err)
			}
			jobs, err := a.video.UserJobs(cmd.Context(), id.UserID, limit)
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				started := ""
				if !job.StartedAt.IsZero() {
					started = job.StartedAt.Local().Format("2006-01-02 15:04")
				}
				finished := ""
				if job.FinishedAt != nil {
					finished = job.FinishedAt.Local().Format("2006-01-02 15:04")
				}
				orientation := "landscape"
				if job.VideoMode {
					orientation = "portrait"
				}
				rows = append(rows, []string{job.ID, job.Title, job.Status, orientation, started, finished})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobsColumns, rows))
			return nil
		},
	}
	jobsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a job manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			manifest, err := a.video.JobManifest(cmd.Context(), args[0])
			if err != nil {
				return userMessage(err)
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, manifest, "", "  "); err != nil {
				return fmt.Errorf("format manifest: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return nil
		},
	})
	return jobsCmd
}
