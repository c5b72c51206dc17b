package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelcraft/internal/bridge"
	"reelcraft/internal/logging"
	"reelcraft/internal/pipeline"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the pipeline and gallery over a local HTTP bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = a.cfg.Bridge.Bind
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var observers []pipeline.Observer
			if journal, err := ctx.ensureHistory(); err != nil {
				logging.WarnWithContext(a.logger, "history unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
				)
			} else {
				observers = append(observers, journal)
			}
			machine := a.newMachine(observers...)
			defer machine.Close()

			cache, exec := a.newGallery(runCtx, nil)
			defer exec.Close()

			srv := bridge.New(machine,
				bridge.WithGallery(cache),
				bridge.WithToken(a.cfg.Bridge.Token),
				bridge.WithLogger(a.logger),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Bridge listening on %s\n", bind)
			return srv.ListenAndServe(runCtx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to bridge.bind)")
	return cmd
}
