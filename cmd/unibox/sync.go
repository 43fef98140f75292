package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/config"
	"github.com/daviddao/unibox/internal/display"
	"github.com/daviddao/unibox/internal/recon"
	"github.com/daviddao/unibox/internal/types"
)

var syncAccount string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local inbox with every configured account",
	Long: "Run one reconciliation pass per provider account: drop items the\n" +
		"remote has closed, pull in newly appeared ones, and pick up importance\n" +
		"toggles made on the provider's own client.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine := recon.New(store, logger)
		reg := buildRegistry(ctx)

		if len(reg.Accounts()) == 0 {
			return fmt.Errorf("no accounts configured: add gmail, outlook or imap entries to %s", config.DefaultPath())
		}

		var summary *types.SyncSummary
		if syncAccount != "" {
			adapter, ok := reg.Lookup(syncAccount)
			if !ok {
				return fmt.Errorf("unknown account %q (configured: %s)", syncAccount, strings.Join(reg.Accounts(), ", "))
			}
			result, err := engine.SyncAccount(ctx, adapter)
			if err != nil {
				result.Error = err.Error()
			}
			summary = &types.SyncSummary{
				Accounts:  []types.SyncResult{*result},
				TotalNew:  result.Inserted,
				TotalInDB: store.ItemCount(),
			}
		} else {
			summary = engine.SyncAll(ctx, reg)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		if !quietFlag {
			for _, r := range summary.Accounts {
				if r.Error != "" {
					display.ErrorMsg("%s: %s", r.Account, r.Error)
					continue
				}
				fmt.Printf("  %s: %d new, %d closed", r.Account, r.Inserted, r.Deleted)
				if r.Restated > 0 {
					fmt.Printf(", %d restated", r.Restated)
				}
				if r.Skipped > 0 {
					fmt.Printf(", %d deferred", r.Skipped)
				}
				fmt.Println()
			}
			display.SuccessMsg("Done! %d new items. Total tracked: %d", summary.TotalNew, summary.TotalInDB)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncAccount, "account", "", "Sync a single provider account")
	rootCmd.AddCommand(syncCmd)
}
