package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmarchuk/newsloom/internal/model"
)

// statusCmd reports the state of past runs from their persisted
// RunState snapshots
var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the status and event log of a run",
	Long: `Status prints the stage progress, error summary and transition
event log of one run, or lists recent runs when no id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		runsDir := filepath.Join(cfg.Store.Dir, "runs")

		if len(args) == 0 {
			return listRuns(runsDir)
		}
		return showRun(runsDir, args[0])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func listRuns(runsDir string) error {
	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		fmt.Println("No runs recorded.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read runs dir: %w", err)
	}

	var states []model.RunState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		state, err := readRunState(filepath.Join(runsDir, entry.Name()))
		if err != nil {
			continue
		}
		states = append(states, state)
	}

	if len(states) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.After(states[j].StartedAt)
	})

	fmt.Printf("%-38s %-10s %-20s %s\n", "RUN", "STATUS", "STARTED", "FAILED STAGE")
	for _, state := range states {
		fmt.Printf("%-38s %-10s %-20s %s\n",
			state.ID, state.Status,
			state.StartedAt.Format("2006-01-02 15:04:05"),
			state.FailedStage)
	}
	return nil
}

func showRun(runsDir, id string) error {
	state, err := readRunState(filepath.Join(runsDir, id+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("unknown run %s", id)
	}
	if err != nil {
		return err
	}

	printRunSummary(state)

	if len(state.Events) > 0 {
		fmt.Println("\nEvents:")
		for _, ev := range state.Events {
			note := ""
			if ev.Note != "" {
				note = " (" + ev.Note + ")"
			}
			fmt.Printf("  %s  %s -> %s%s\n",
				ev.At.Format("15:04:05.000"), ev.From, ev.To, note)
		}
	}
	return nil
}

func readRunState(path string) (model.RunState, error) {
	var state model.RunState
	data, err := os.ReadFile(path)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse run state: %w", err)
	}
	return state, nil
}
