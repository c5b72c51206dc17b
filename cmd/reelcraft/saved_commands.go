package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelcraft/internal/gallery"
)

func newSavedCommand(ctx *commandContext) *cobra.Command {
	savedCmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved-video records on the account",
	}

	savedCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			assets, err := gallery.NewSaved(a.session, a.assets).List(cmd.Context())
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, assets)
			}
			if len(assets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved videos")
				return nil
			}
			rows := make([][]string, 0, len(assets))
			for _, asset := range assets {
				duration := ""
				if asset.DurationSec != nil {
					duration = (time.Duration(*asset.DurationSec) * time.Second).String()
				}
				created := ""
				if !asset.CreatedAt.IsZero() {
					created = asset.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{asset.ID, asset.Title, duration, created, asset.Locator})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(savedColumns, rows))
			return nil
		},
	})

	var req gallery.SaveRequest
	var duration int
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Save a rendered video to the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if duration > 0 {
				req.DurationSec = &duration
			}
			req.Path = a.assets.ToRelative(req.Path)
			asset, err := gallery.NewSaved(a.session, a.assets).Add(cmd.Context(), req)
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, asset)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s\n", asset.Title, asset.ID)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&req.Title, "title", "t", "", "Title of the saved video")
	addCmd.Flags().StringVarP(&req.Path, "path", "p", "", "Server path or locator of the rendered file")
	addCmd.Flags().StringVar(&req.Thumbnail, "thumbnail", "", "Thumbnail path")
	addCmd.Flags().StringVar(&req.JobID, "job", "", "Job that produced the video")
	addCmd.Flags().IntVar(&duration, "duration", 0, "Length in seconds")
	savedCmd.AddCommand(addCmd)

	savedCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a saved-video record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := gallery.NewSaved(a.session, a.assets).Delete(cmd.Context(), args[0]); err != nil {
				return userMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted saved video %s\n", args[0])
			return nil
		},
	})

	return savedCmd
}

