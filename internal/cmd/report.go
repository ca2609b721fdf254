package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rand/conjecture/internal/research"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the research report for the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		state, err := research.LoadState(filepath.Join(cfg.WorkspaceDir, "current_state.json"))
		if err != nil {
			return err
		}
		if state.ResearchObjective == "" {
			return fmt.Errorf("no research state found in %s", cfg.WorkspaceDir)
		}

		fmt.Print(research.RenderReport(state))
		return nil
	},
}
