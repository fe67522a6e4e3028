package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mathquest/mathquest/internal/app/achievement"
)

func newEvaluateCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate every badge for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDaemon(cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.Evaluator.EvaluateUser(cmd.Context(), userID, nil, achievement.TriggerAPI)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Badges) == 0 {
				fmt.Fprintln(out, "No badges defined.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BADGE\tKIND\tRESULT\tPROGRESS")
			for _, b := range res.Badges {
				progress := "-"
				if b.Progress != nil {
					progress = fmt.Sprintf("%d/%d", b.Progress.Current, b.Progress.Target)
				}
				result := b.Result.String()
				if b.Legacy {
					result += " (legacy)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.BadgeID, b.Kind, result, progress)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d badges passed in %s\n", len(res.Passed()), len(res.Badges), res.Duration.Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
