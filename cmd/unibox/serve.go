package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/httpapi"
	"github.com/daviddao/unibox/internal/recon"
	"github.com/daviddao/unibox/internal/triage"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the triage REST API",
	Long: "Expose the inbox over HTTP for a browser UI: item paging, triage\n" +
		"actions and on-demand reconciliation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listen := serveListen
		if listen == "" {
			listen = cfg.Listen
		}

		reg := buildRegistry(ctx)
		engine := recon.New(store, logger)
		ctrl := triage.New(store, reg, logger)
		server := httpapi.New(ctrl, engine, reg, logger)

		if !quietFlag {
			fmt.Printf("unibox listening on http://%s\n", listen)
		}
		return http.ListenAndServe(listen, server.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
