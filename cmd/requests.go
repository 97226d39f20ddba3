package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/leetbuddy/internal/engine"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/ui/components"
	"github.com/abhisek/leetbuddy/internal/verify"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's problem and the block state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func runStatus(cmd *cobra.Command) error {
	return withApp(cmd, func(a *app) error {
		if err := a.engine.Tick(cmd.Context()); err != nil {
			return err
		}
		return runStatusWith(cmd, a)
	})
}

func runStatusWith(cmd *cobra.Command, a *app) error {
	v, err := a.engine.GetAssignment(cmd.Context())
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	return printAssignment(cmd, v)
}

func printAssignment(cmd *cobra.Command, v engine.AssignmentView) error {
	if done, err := printJSON(cmd, v); done {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), components.StatusCard(v))
	return nil
}

var solveCmd = &cobra.Command{
	Use:   "solve <slug>",
	Short: "Report an accepted submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claim := verify.Claim{CanonicalSlug: args[0]}

		if at, _ := cmd.Flags().GetString("at"); at != "" {
			ts, err := parseTime(at)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			claim.SubmissionTimestamp = &ts
		}
		if cmd.Flags().Changed("verified") {
			verified, _ := cmd.Flags().GetBool("verified")
			claim.ExternallyVerifiedToday = &verified
		}

		return withApp(cmd, func(a *app) error {
			res, err := a.engine.SolveClaim(cmd.Context(), claim)
			if err != nil {
				return fmt.Errorf("solve: %w", err)
			}
			if done, err := printJSON(cmd, res); done {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.CountsAsToday:
				fmt.Fprintf(out, "Counted as today's solve (%s).\n", res.Reason)
			case res.Accepted:
				fmt.Fprintf(out, "Recorded, but it does not count for today (%s).\n", res.Reason)
			default:
				fmt.Fprintf(out, "Not accepted (%s).\n", res.Reason)
			}
			if res.NewAssignment != nil {
				fmt.Fprintln(out, components.StatusCard(*res.NewAssignment))
			}
			return nil
		})
	},
}

// parseTime accepts RFC 3339 or unix milliseconds.
func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, s)
}

var bypassCmd = &cobra.Command{
	Use:   "bypass",
	Short: "Lift the block for a short while",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			res, err := a.engine.RequestBypass(cmd.Context())
			if err != nil {
				return fmt.Errorf("bypass: %w", err)
			}
			if done, err := printJSON(cmd, res); done {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Granted {
				fmt.Fprintf(out, "Bypass granted for %s.\n", components.FormatMs(res.RemainingMs))
				return nil
			}
			fmt.Fprintf(out, "Bypass refused (%s).\n", res.Reason)
			if res.NextAllowedAt > 0 {
				next := time.UnixMilli(res.NextAllowedAt)
				fmt.Fprintf(out, "Next bypass at %s.\n", next.Format(time.Kitchen))
			}
			return nil
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull solved problems from the site and pick a new assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			v, err := a.engine.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			return printAssignment(cmd, v)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every solved problem and start over",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("reset erases all progress; rerun with --yes to confirm")
		}
		return withApp(cmd, func(a *app) error {
			v, err := a.engine.ResetProgress(cmd.Context())
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			return printAssignment(cmd, v)
		})
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <set>",
	Short: "Switch the active problem set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			v, err := a.engine.SwitchSet(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("switch set: %w", err)
			}
			return printAssignment(cmd, v)
		})
	},
}

var policyCmd = &cobra.Command{
	Use:   "policy <sequential|difficulty|random>",
	Short: "Change how the next problem is chosen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			v, err := a.engine.SetPolicy(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("set policy: %w", err)
			}
			return printAssignment(cmd, v)
		})
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show per-category progress for the active set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			v, err := a.engine.DetailedProgress(cmd.Context())
			if err != nil {
				return fmt.Errorf("progress: %w", err)
			}
			if done, err := printJSON(cmd, v); done {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			fmt.Fprint(cmd.OutOrStdout(), components.ProgressTable(v, all))
			return nil
		})
	},
}

var excludeCmd = &cobra.Command{
	Use:   "exclude",
	Short: "Manage domains that stay reachable while blocked",
}

var excludeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List excluded domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			ex, err := a.engine.Exclusions(cmd.Context())
			return printExclusions(cmd, ex, err)
		})
	},
}

var excludeAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Add an excluded domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			ex, err := a.engine.AddExclusion(cmd.Context(), args[0])
			return printExclusions(cmd, ex, err)
		})
	},
}

var excludeRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove the excluded domain at index (as shown by list)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		return withApp(cmd, func(a *app) error {
			ex, err := a.engine.RemoveExclusion(cmd.Context(), index)
			return printExclusions(cmd, ex, err)
		})
	},
}

var excludeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default excluded domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			ex, err := a.engine.ResetExclusions(cmd.Context())
			return printExclusions(cmd, ex, err)
		})
	},
}

func printExclusions(cmd *cobra.Command, ex redirect.Exclusions, err error) error {
	if err != nil {
		return fmt.Errorf("exclusions: %w", err)
	}
	if done, err := printJSON(cmd, ex); done {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Always allowed: %v\n", ex.System)
	fmt.Fprintf(out, "Your domains (%d/%d):\n", len(ex.User), ex.Max)
	for i, d := range ex.User {
		fmt.Fprintf(out, "  %d  %s\n", i, d)
	}
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent solves, bypasses, and set changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(a *app) error {
			events, err := a.engine.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if done, err := printJSON(cmd, events); done {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ev := range events {
				fmt.Fprintf(out, "%s  %-14s %s %s %s\n",
					ev.Timestamp.Local().Format("2006-01-02 15:04"), ev.Kind, ev.SetID, ev.Slug, ev.Detail)
			}
			return nil
		})
	},
}

func init() {
	solveCmd.Flags().String("at", "", "Submission time (RFC 3339 or unix milliseconds)")
	solveCmd.Flags().Bool("verified", false, "Whether the site confirmed the solve happened today")
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
	progressCmd.Flags().Bool("all", false, "List every problem under its category")
	historyCmd.Flags().Int("limit", engine.DefaultHistoryLimit, "Maximum number of events")

	excludeCmd.AddCommand(excludeListCmd)
	excludeCmd.AddCommand(excludeAddCmd)
	excludeCmd.AddCommand(excludeRemoveCmd)
	excludeCmd.AddCommand(excludeResetCmd)
}
