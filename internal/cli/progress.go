package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders requirement completion as: [████████████░░░░░░░░] 60% │ 6 / 10

const barWidth = 20 // Characters for the progress bar

func renderBar(p domain.Progress) string {
	filled := int(p.Fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("[%s] %3.0f%% │ %d / %d", bar, p.Fraction*100, p.Current, p.Target)
}

func newProgressCmd() *cobra.Command {
	var (
		req      requirementFlags
		useCache bool
	)
	cmd := &cobra.Command{
		Use:     "progress",
		Short:   "Show a user's progress toward a requirement",
		Example: `  mathquest progress --user u1 --requirements '{"consecutive_days": 7}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := req.schema()
			if err != nil {
				return err
			}
			d, err := openDaemon(cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			var cache *domain.StatsCache
			if useCache {
				cache, _ = d.Engine.BuildStats(cmd.Context(), req.userID)
			}
			kind := achievement.DetectKind(schema)
			p, ok := d.Engine.RequirementProgress(cmd.Context(), req.userID, schema, cache)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no progress available\n", kind)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, renderBar(p))
			return nil
		},
	}
	req.register(cmd)
	cmd.Flags().BoolVar(&useCache, "cache", false, "Build the stats cache before computing")
	return cmd
}
