package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [id|email]",
	Short: "Show recorded quota history for an account",
	Long: `Show quota snapshots recorded during refreshes, newest first. Use
--model to restrict to one model and --limit to bound the output.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyModelArg string
	historyLimitArg int
	historyStatsArg bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyModelArg, "model", "", "Restrict to one model")
	historyCmd.Flags().IntVar(&historyLimitArg, "limit", 50, "Maximum number of rows")
	historyCmd.Flags().BoolVar(&historyStatsArg, "stats", false, "Show aggregate statistics instead of rows")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.history == nil {
		return fmt.Errorf("quota history database is unavailable")
	}

	id, err := a.resolveAccountID(args[0])
	if err != nil {
		return err
	}

	if historyStatsArg {
		stats, err := a.history.Stats(id)
		if err != nil {
			return err
		}
		fmt.Printf("Samples: %d\n", stats.Samples)
		if stats.Samples > 0 {
			fmt.Printf("First: %s\n", time.Unix(stats.FirstAt, 0).Format(time.RFC3339))
			fmt.Printf("Last:  %s\n", time.Unix(stats.LastAt, 0).Format(time.RFC3339))
		}
		return nil
	}

	points, err := a.history.History(id, historyModelArg, historyLimitArg)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Println("No history recorded.")
		return nil
	}
	for _, p := range points {
		fmt.Printf("%s  %-28s %3d%%\n",
			time.Unix(p.RecordedAt, 0).Format(time.RFC3339), p.Model, p.Percentage)
	}
	return nil
}
