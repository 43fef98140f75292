package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/display"
	"github.com/daviddao/unibox/internal/triage"
)

// triageAction builds a cobra command for one controller action. The
// remote side must succeed before the local row changes; on failure the
// item stays where it was and the command exits non-zero.
func triageAction(use, short string, needsRemote bool, call func(*triage.Controller, context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			ctx := cmd.Context()
			ctrl := newController(ctx, needsRemote)
			if err := call(ctrl, ctx, id); err != nil {
				return err
			}
			if !quietFlag {
				display.SuccessMsg("%s #%d", short, id)
			}
			return nil
		},
	}
}

// newController wires a controller. Local-only actions skip session
// acquisition entirely.
func newController(ctx context.Context, needsRemote bool) *triage.Controller {
	reg := buildEmptyRegistry()
	if needsRemote {
		reg = buildRegistry(ctx)
	}
	return triage.New(store, reg, logger)
}

func init() {
	rootCmd.AddCommand(
		triageAction("read", "Marked read", true, (*triage.Controller).MarkRead),
		triageAction("pend", "Marked pending", false, (*triage.Controller).MarkPending),
		triageAction("star", "Marked important", true, (*triage.Controller).MarkImportant),
		triageAction("unstar", "Marked unimportant", true, (*triage.Controller).MarkUnimportant),
		triageAction("rm", "Deleted", true, (*triage.Controller).Delete),
	)
}
