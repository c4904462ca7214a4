// Package cli implements the patchwork command-line interface: inspection,
// merging, and consolidation of patches held in an SQLite store.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/geostack/patchwork/internal/paths"
)

// Version is the patchwork release version.
const Version = "0.3.0"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDB        string
	flagVerbose   bool
)

// configDB holds the db value loaded from config.yaml. Set by
// PersistentPreRunE so all subcommands can use it.
var configDB string

// NewRootCmd creates the top-level "patchwork" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "patchwork",
		Short:   "Patchwork manages typed geospatial data patches",
		Version: Version,
		Long: `Patchwork stores, inspects, merges, and consolidates patches:
typed containers of multi-temporal geospatial data backed by SQLite.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			configDir, err := paths.ResolveConfigDir(flagConfigDir)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			configDB = cfg.GetString(cfgKeyDB)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "patch database path (default: $(CWD)/.patchwork/patchwork.db)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newListCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newConsolidateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// setupLogging installs a tinted slog handler on stderr.
func setupLogging() {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
}

// resolveDB returns the database path from flag, config, env, or default.
func resolveDB() (string, error) {
	return paths.ResolveDB(flagDB, configDB)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}
