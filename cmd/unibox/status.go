package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/display"
	"github.com/daviddao/unibox/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bucket counts and tracked accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := store.CountByStatus()
		if err != nil {
			return err
		}
		accounts := store.Accounts()

		if jsonOutput {
			out := map[string]any{
				"unread":    counts[types.StatusUnread],
				"pending":   counts[types.StatusPending],
				"important": counts[types.StatusImportant],
				"total":     store.ItemCount(),
				"accounts":  accounts,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		display.Header("Inbox")
		for _, st := range []types.Status{types.StatusUnread, types.StatusPending, types.StatusImportant} {
			fmt.Printf("  %s %s %d\n", display.StatusDot(st), display.StatusLabel(st), counts[st])
		}
		if len(accounts) > 0 {
			fmt.Println()
			display.Header("Accounts")
			for _, a := range accounts {
				fmt.Printf("  %s\n", a)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
