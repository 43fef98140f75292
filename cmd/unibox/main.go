package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/unibox/internal/config"
	"github.com/daviddao/unibox/internal/db"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	dbPath     string
	jsonOutput bool
	quietFlag  bool
	verboseLog bool

	cfg    *config.Config
	store  *db.DB
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "unibox",
	Short: "unibox - one triage inbox over Gmail, Outlook and IMAP",
	Long: "Unibox keeps a local cache of mail that still needs attention across\n" +
		"several provider accounts, and triages it into unread, pending and\n" +
		"important buckets.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version":
			return nil
		}

		logOut := io.Discard
		if verboseLog {
			logOut = os.Stderr
		}
		logger = slog.New(slog.NewTextHandler(logOut, nil))

		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		store, err = db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("unibox version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the unibox database",
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE already created it; this just reports where.
		if !quietFlag {
			fmt.Printf("Initialized unibox at %s\n", store.Path())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config path (default: ~/.config/unibox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verboseLog, "verbose", "v", false, "Log sync details to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
