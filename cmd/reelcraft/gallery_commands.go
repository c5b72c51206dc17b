package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelcraft/internal/gallery"
	"reelcraft/internal/retry"
)

// noticeLog collects terminal mutation outcomes delivered by the cache.
type noticeLog struct {
	mu      sync.Mutex
	notices []gallery.Notice
}

func (l *noticeLog) add(n gallery.Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) last() (gallery.Notice, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.notices) == 0 {
		return gallery.Notice{}, false
	}
	return l.notices[len(l.notices)-1], true
}

func (a *app) newGallery(ctx context.Context, notify func(gallery.Notice)) (*gallery.Cache, *retry.Executor) {
	exec := retry.New(ctx,
		retry.WithPolicy(a.retryPolicy()),
		retry.WithLogger(a.logger),
		retry.WithGaveUp(a.notifier.GaveUpHook()),
	)
	cache := gallery.New(a.video, a.session, exec,
		gallery.WithLogger(a.logger),
		gallery.WithResolver(a.assets),
		gallery.WithNotify(notify),
	)
	return cache, exec
}

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	galleryCmd := &cobra.Command{
		Use:   "gallery",
		Short: "Manage rendered videos stored on the service",
	}
	galleryCmd.AddCommand(newGalleryListCommand(ctx))
	galleryCmd.AddCommand(newGalleryRenameCommand(ctx))
	galleryCmd.AddCommand(newGalleryDeleteCommand(ctx))
	return galleryCmd
}

func newGalleryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List gallery items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			cache, exec := a.newGallery(cmd.Context(), nil)
			defer exec.Close()
			items, err := cache.Refresh(cmd.Context())
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Gallery is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				modified := ""
				if !item.Modified.IsZero() {
					modified = humanize.Time(item.Modified)
				}
				rows = append(rows, []string{item.Name, humanize.Bytes(uint64(max(item.Size, 0))), modified, item.Locator})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(galleryColumns, rows))
			return nil
		},
	}
}

// runMutation loads the gallery, applies one optimistic mutation and waits
// for the retry executor to settle it.
func runMutation(cmd *cobra.Command, ctx *commandContext, mutate func(*gallery.Cache) error) (gallery.Notice, error) {
	a, err := ctx.ensureApp()
	if err != nil {
		return gallery.Notice{}, err
	}
	log := &noticeLog{}
	cache, exec := a.newGallery(cmd.Context(), log.add)
	defer exec.Close()
	if _, err := cache.Refresh(cmd.Context()); err != nil {
		return gallery.Notice{}, userMessage(err)
	}
	if err := mutate(cache); err != nil {
		return gallery.Notice{}, userMessage(err)
	}
	cache.Wait()
	notice, ok := log.last()
	if !ok {
		return gallery.Notice{}, fmt.Errorf("gallery change did not settle")
	}
	if notice.Kind == gallery.NoticeRolledBack {
		return notice, fmt.Errorf("change to %s was reverted: %w", notice.Name, userMessage(notice.Err))
	}
	return notice, nil
}

func newGalleryRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a gallery item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notice, err := runMutation(cmd, ctx, func(c *gallery.Cache) error {
				_, err := c.Rename(cmd.Context(), args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", notice.Name, notice.NewName)
			return nil
		},
	}
}

func newGalleryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a gallery item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notice, err := runMutation(cmd, ctx, func(c *gallery.Cache) error {
				return c.Delete(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", notice.Name)
			return nil
		},
	}
}
