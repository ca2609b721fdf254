package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rand/conjecture/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Summarize the accumulated knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := knowledge.NewStore(knowledge.Options{
			Dir:                cfg.CognitionsDir,
			MaxInsights:        cfg.MaxInsightsStored,
			RelevanceThreshold: cfg.InsightRelevanceThreshold,
		})
		if err != nil {
			return fmt.Errorf("open knowledge store: %w", err)
		}
		summary := store.Summarize()

		if asJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		}

		fmt.Println("Knowledge Base Summary")
		fmt.Println("======================")
		fmt.Println()
		fmt.Printf("Insights:    %d\n", summary.TotalInsights)
		fmt.Printf("Patterns:    %d across %d types\n", summary.TotalPatterns, len(summary.PatternTypes))
		fmt.Printf("Algorithms:  %d\n", summary.AlgorithmsStored)
		fmt.Printf("Failures:    %d distinct types\n", summary.FailureTypes)

		if len(summary.MostUsedInsights) > 0 {
			fmt.Println("\nMost used insights:")
			for _, insight := range summary.MostUsedInsights {
				fmt.Printf("  %3dx  %s\n", insight.UsageCount, insight.Content)
			}
		}
		if len(summary.CommonPatterns) > 0 {
			fmt.Println("\nCommon patterns:")
			for _, p := range summary.CommonPatterns {
				fmt.Printf("  %s: %s (seen %d times)\n", p.Type, p.Pattern, p.Occurrences)
			}
		}
		return nil
	},
}

func init() {
	knowledgeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
