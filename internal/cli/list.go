package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geostack/patchwork/internal/sqlite"
)

// openStore opens the resolved patch database.
func openStore() (*sqlite.Store, error) {
	dbPath, err := resolveDB()
	if err != nil {
		return nil, err
	}
	slog.Debug("opening patch store", "path", dbPath)
	return sqlite.Open(dbPath)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the patches in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.ListPatches()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
