package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rand/conjecture/internal/archive"
)

var historyCmd = &cobra.Command{
	Use:   "history [search term]",
	Short: "Browse archived experiments",
	Long: `List archived experiments, newest first. With a search term, match it
against experiment descriptions and approaches instead.`,
	Example: `
# The last experiments
conjecture history

# The highest scoring experiments
conjecture history --best

# Experiments mentioning memoization
conjecture history memoization
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		best, _ := cmd.Flags().GetBool("best")

		dbPath := filepath.Join(cfg.WorkspaceDir, "experiments.db")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("no experiment archive found in %s", cfg.WorkspaceDir)
		}
		store, err := archive.New(archive.Options{Path: dbPath})
		if err != nil {
			return fmt.Errorf("open experiment archive: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		var entries []archive.Entry
		switch {
		case len(args) > 0:
			entries, err = store.Search(ctx, args[0], limit)
		case best:
			entries, err = store.Best(ctx, limit)
		default:
			entries, err = store.Recent(ctx, limit)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No experiments found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tSCORE\tSTATUS\tDESCRIPTION")
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
				e.ID,
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				e.Score,
				status,
				truncateDescription(e.Description, 60))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		stats, err := store.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n%d experiments archived, %d successful, best score %.2f\n",
			stats.Total, stats.Successful, stats.BestScore)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 20, "Maximum entries to show")
	historyCmd.Flags().BoolP("best", "b", false, "Order by score instead of recency")
}

func truncateDescription(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
