package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mdr-backend/internal/app"
	"github.com/yungbote/mdr-backend/internal/domain/library"
)

func newSyncUIDsCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-uids",
		Short: "Raise every uid counter to the highest uid in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(e, cmd, func(ctx context.Context, a *app.App) error {
				counters, err := a.Services.Library.SyncUIDs(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), counters)
			})
		},
	}
}

func newHistoryCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "history <kind> <uid>",
		Short: "Print the version history of one object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(e, cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Services.Library.History(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func newCompactCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "compact <kind> <uid>",
		Short: "Delete superseded links of values no pointer references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(e, cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Services.Library.Compact(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d superseded links\n", n)
				return nil
			})
		},
	}
}

func newReprojectCmd(e env) *cobra.Command {
	var batchSize, workers int
	cmd := &cobra.Command{
		Use:   "reproject <kind> [uid...]",
		Short: "Rebuild the neo4j projection for a kind or for listed uids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(e, cmd, func(ctx context.Context, a *app.App) error {
				if a.Services.Projector == nil {
					return fmt.Errorf("NEO4J_URI is not set")
				}
				refs, err := reprojectRefs(ctx, a, args[0], args[1:])
				if err != nil {
					return err
				}
				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(max(workers, 1))
				for _, batch := range batches(refs, batchSize) {
					g.Go(func() error {
						return a.Services.Projector.Project(gctx, batch)
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reprojected %d roots\n", len(refs))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 200, "roots per projection write")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent projection writes")
	return cmd
}

func reprojectRefs(ctx context.Context, a *app.App, kind string, uids []string) ([]library.RootRef, error) {
	if len(uids) == 0 {
		return a.Services.Library.RootRefs(ctx, kind)
	}
	all, err := a.Services.Library.RootRefs(ctx, kind)
	if err != nil {
		return nil, err
	}
	known := make(map[string]library.RootRef, len(all))
	for _, r := range all {
		known[r.UID] = r
	}
	out := make([]library.RootRef, 0, len(uids))
	for _, uid := range uids {
		r, ok := known[uid]
		if !ok {
			return nil, fmt.Errorf("%s %s not found", kind, uid)
		}
		out = append(out, r)
	}
	return out, nil
}

// batches splits refs into chunks of at most size.
func batches(refs []library.RootRef, size int) [][]library.RootRef {
	if size <= 0 {
		size = 1
	}
	var out [][]library.RootRef
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		out = append(out, refs[start:end])
	}
	return out
}
