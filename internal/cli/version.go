package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/geostack/patchwork"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the patchwork version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "patchwork v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
