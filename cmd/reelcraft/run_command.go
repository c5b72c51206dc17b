package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelcraft/internal/pipeline"
	"reelcraft/internal/videoapi"
)

type runOptions struct {
	title       string
	channelType string
	voice       string
	voiceSample string
	landscape   bool
	music       string
	captions    bool
	download    string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a video end to end from a title",
		Long: "Drives every stage in order: content, scripts, images, voices, " +
			"assembly, optional background music and captions, then fetches the final render.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.title) == "" && len(args) > 0 {
				opts.title = strings.Join(args, " ")
			}
			if strings.TrimSpace(opts.title) == "" {
				return errors.New("a title is required (use --title)")
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			journal, err := ctx.ensureHistory()
			if err != nil {
				// The journal is a convenience; a broken state dir must not
				// block generation.
				fmt.Fprintf(cmd.ErrOrStderr(), "history unavailable: %v\n", err)
				journal = nil
			}

			var observers []pipeline.Observer
			if journal != nil {
				observers = append(observers, journal)
			}
			if !ctx.jsonOutput() {
				observers = append(observers, newProgressPrinter(cmd.OutOrStdout()))
			}
			machine := a.newMachine(observers...)
			defer machine.Close()

			state, err := runPipeline(cmd.Context(), machine, opts)
			if err != nil {
				if ctx.jsonOutput() {
					_ = writeJSON(cmd, state)
				}
				return userMessage(err)
			}

			if opts.download != "" {
				if err := downloadFinal(cmd.Context(), a, state.FinalVideo, opts.download); err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, state)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s finished\n", state.JobID)
			fmt.Fprintf(out, "Final video: %s\n", state.FinalVideo)
			if opts.download != "" {
				fmt.Fprintf(out, "Saved to %s\n", opts.download)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Video title")
	cmd.Flags().StringVar(&opts.channelType, "channel-type", "", "Channel style hint passed to content and script generation")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Named narration voice (see `reelcraft voices`)")
	cmd.Flags().StringVar(&opts.voiceSample, "voice-sample", "", "Narrate with your own voice sample instead of a named voice")
	cmd.Flags().BoolVar(&opts.landscape, "landscape", false, "Render 16:9 instead of the default portrait 9:16")
	cmd.Flags().StringVar(&opts.music, "music", "", "Background music file to mix in")
	cmd.Flags().BoolVar(&opts.captions, "captions", false, "Burn captions into the video")
	cmd.Flags().StringVarP(&opts.download, "output", "o", "", "Download the final video to this path")
	return cmd
}

// runPipeline walks a fresh Machine from the landing step to the final render.
func runPipeline(ctx context.Context, m *pipeline.Machine, opts runOptions) (pipeline.State, error) {
	m.SetTitle(opts.title)
	m.SetChannelType(opts.channelType)
	if opts.voice != "" {
		m.SetVoiceChoice(opts.voice)
	}
	if opts.voiceSample != "" {
		m.SetOwnVoice(true)
		m.SetCustomVoice(videoapi.FileUpload(opts.voiceSample))
	}
	if opts.landscape {
		m.SetVideoMode(ctx, false)
	}

	music := pipeline.MusicOptions{Captions: opts.captions}
	if opts.music != "" {
		music.Track = videoapi.FileUpload(opts.music)
	}

	steps := []func(context.Context) error{
		m.Start,
		m.GenerateContent,
		m.GenerateScripts,
		m.GenerateImages,
		m.GenerateVoices,
		m.Continue,
		m.Assemble,
		func(ctx context.Context) error { return m.AddMusic(ctx, music) },
	}
	if opts.captions {
		steps = append(steps, m.AddCaptions)
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return m.Snapshot(), err
		}
	}
	return m.Snapshot(), nil
}

func downloadFinal(ctx context.Context, a *app, locator, target string) error {
	if locator == "" {
		return errors.New("no final video to download")
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	n, err := a.videoRaw.Download(ctx, locator, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return userMessage(err)
	}
	if n == 0 {
		return fmt.Errorf("downloaded %s is empty", target)
	}
	return nil
}
