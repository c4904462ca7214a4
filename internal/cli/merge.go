package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/geostack/patchwork/pkg/patch"
)

func newMergeCmd() *cobra.Command {
	var timePolicy, timelessPolicy string

	cmd := &cobra.Command{
		Use:   "merge <out> <patch>...",
		Short: "Merge stored patches into a new one",
		Long: `Merge loads the given patches, combines them feature by feature, and
saves the result under the out name, replacing any previous content.
Policies: none (exact match), concatenate, min, max, mean, median.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			inputs := make([]*patch.Patch, 0, len(args)-1)
			for _, name := range args[1:] {
				p, err := patch.Load(store, name, nil, false)
				if err != nil {
					return err
				}
				inputs = append(inputs, p)
			}

			opts := patch.MergeOptions{
				TimePolicy:     parsePolicy(timePolicy),
				TimelessPolicy: parsePolicy(timelessPolicy),
			}
			merged, err := patch.Merge(opts, inputs...)
			if err != nil {
				return err
			}

			slog.Info("merged patches", "inputs", len(inputs), "out", args[0])
			return merged.Save(store, args[0], nil, patch.OverwritePatch)
		},
	}

	cmd.Flags().StringVar(&timePolicy, "time-policy", "none", "reduction policy for temporal array entries")
	cmd.Flags().StringVar(&timelessPolicy, "timeless-policy", "none", "reduction policy for timeless array entries")
	return cmd
}

// parsePolicy maps the CLI spelling onto a merge policy; "none" is the
// exact-match default. Unknown values pass through and fail validation in
// the merge engine.
func parsePolicy(s string) patch.Policy {
	if s == "none" || s == "" {
		return patch.PolicyNone
	}
	return patch.Policy(s)
}

func newConsolidateCmd() *cobra.Command {
	var keep []string

	cmd := &cobra.Command{
		Use:   "consolidate <patch>",
		Short: "Prune a stored patch to a set of timestamps",
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

			valid := make([]time.Time, 0, len(keep))
			for _, s := range keep {
				ts, err := patch.ParseTimestamp(s)
				if err != nil {
					return err
				}
				valid = append(valid, ts)
			}

			removed, err := p.ConsolidateTimestamps(valid)
			if err != nil {
				return err
			}
			for _, ts := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", ts.Format(time.RFC3339))
			}
			return p.Save(store, args[0], nil, patch.OverwritePatch)
		},
	}

	cmd.Flags().StringSliceVar(&keep, "keep", nil, "timestamps to keep (RFC 3339)")
	return cmd
}
