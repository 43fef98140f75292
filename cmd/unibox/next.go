package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/db"
	"github.com/daviddao/unibox/internal/display"
	"github.com/daviddao/unibox/internal/types"
)

var (
	nextStatus string
	nextOffset int
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the oldest item in a bucket",
	Long: "Page through one triage bucket a single item at a time, oldest\n" +
		"first. Use --offset to look further down the bucket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, ok := types.ParseStatus(nextStatus)
		if !ok {
			return fmt.Errorf("unknown status %q (must be: unread, pending, important)", nextStatus)
		}

		item, err := store.Next(st, nextOffset)
		if errors.Is(err, db.ErrNotFound) {
			if jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			fmt.Printf("No more %s items.\n", st)
			return nil
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		}

		display.Item(item)
		return nil
	},
}

func init() {
	nextCmd.Flags().StringVar(&nextStatus, "status", "unread", "Bucket: unread, pending, important")
	nextCmd.Flags().IntVar(&nextOffset, "offset", 0, "Skip this many older items")
	rootCmd.AddCommand(nextCmd)
}
