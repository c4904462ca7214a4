package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/geostack/patchwork/pkg/patch"
	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <patch>",
		Short: "Show the features of a stored patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := patch.Load(store, args[0], nil, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "patch %s\n", args[0])
			if box := p.BBox(); box != nil {
				fmt.Fprintf(out, "  bbox: %s\n", box)
			}
			if ts := p.Timestamps(); len(ts) > 0 {
				fmt.Fprintf(out, "  timestamps: %d (%s .. %s)\n", len(ts),
					ts[0].Format(time.RFC3339), ts[len(ts)-1].Format(time.RFC3339))
			}
			for _, ref := range p.Features() {
				if ref.Kind.IsScalarValued() {
					continue
				}
				value, err := p.GetEntry(ref.Kind, ref.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  (%s, %s): %s\n", ref.Kind, ref.Name, describe(value))
			}
			return nil
		},
	}
}

// describe renders a one-line summary of an entry value.
func describe(value any) string {
	switch val := value.(type) {
	case *raster.Array:
		return fmt.Sprintf("array(shape=%v, dtype=%s)", val.Shape(), val.DType())
	case *vector.Table:
		return fmt.Sprintf("table(columns=%v, rows=%d, crs=%q)", val.Columns(), val.Len(), val.CRS())
	default:
		return fmt.Sprintf("%v", val)
	}
}
