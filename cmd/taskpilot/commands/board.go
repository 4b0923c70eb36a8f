package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the terminal board",
	Long: `Show recommendations, stale tasks and the open task list in a
full-screen terminal view. Press r to refresh, x to toggle the selected
task, q to quit.`,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	src := &ui.StoreSource{Store: a.store, Now: time.Now}
	if a.requireOracle() == nil {
		src.Recommender = recommend.New(a.oracle)
		src.Detector = stale.NewDetector(a.oracle, stale.WithThreshold(a.cfg.Stale.ThresholdDays))
	}
	return ui.New(cmdContext(cmd), src).Run()
}
