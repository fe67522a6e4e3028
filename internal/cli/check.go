package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
)

func newCheckCmd() *cobra.Command {
	var (
		req      requirementFlags
		useCache bool
		ev       struct {
			attemptID    string
			exerciseType string
			correct      bool
			duration     time.Duration
			at           string
		}
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a user meets a requirement",
		Example: `  mathquest check --user u1 --requirements '{"attempts_count": 10}'
  mathquest check --user u1 --requirements '{"max_time": 5}' --correct --duration 3.2s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := req.schema()
			if err != nil {
				return err
			}

			var event *domain.TriggeringEvent
			if cmd.Flags().Changed("correct") || ev.duration > 0 || ev.at != "" || ev.attemptID != "" {
				event = &domain.TriggeringEvent{
					AttemptID:    ev.attemptID,
					ExerciseType: ev.exerciseType,
					Correct:      ev.correct,
					Duration:     ev.duration,
				}
				if ev.at != "" {
					if event.At, err = time.Parse(time.RFC3339, ev.at); err != nil {
						return fmt.Errorf("--at: %w", err)
					}
				}
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
			result := d.Engine.CheckRequirements(cmd.Context(), req.userID, schema, event, cache)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", achievement.DetectKind(schema), result)
			return nil
		},
	}
	req.register(cmd)
	cmd.Flags().BoolVar(&useCache, "cache", false, "Build the stats cache before checking")
	cmd.Flags().StringVar(&ev.attemptID, "attempt-id", "", "Triggering attempt ID")
	cmd.Flags().StringVar(&ev.exerciseType, "exercise-type", "", "Triggering attempt exercise type")
	cmd.Flags().BoolVar(&ev.correct, "correct", false, "Triggering attempt was correct")
	cmd.Flags().DurationVar(&ev.duration, "duration", 0, "Triggering attempt duration")
	cmd.Flags().StringVar(&ev.at, "at", "", "Triggering attempt time (RFC 3339)")
	return cmd
}
