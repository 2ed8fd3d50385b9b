package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/models"
	"github.com/atis-project/atis/internal/store"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the whole population and rank the watchlist",
		Long: `Score embeds every object in the snapshot, fuses the embedding with the
physical proxies, and prints the ranked threat watchlist.

With --db the full ranking is also persisted, replacing the previous cycle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}

			out, err := eng.model.Embed(eng.snap)
			if err != nil {
				return err
			}
			scores, err := eng.combiner.Scores(out, eng.snap)
			if err != nil {
				return err
			}

			sort.Slice(scores, func(i, j int) bool {
				if scores[i].Combined != scores[j].Combined {
					return scores[i].Combined > scores[j].Combined
				}
				return scores[i].ObjectID < scores[j].ObjectID
			})

			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				wl, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer wl.Close()
				if err := wl.Replace(context.Background(), scores); err != nil {
					return err
				}
			}

			top, _ := cmd.Flags().GetInt("top")
			if top > 0 && top < len(scores) {
				scores = scores[:top]
			}

			type result struct {
				Fallback bool                     `json:"fallback_model"`
				Scores   []models.ThreatBreakdown `json:"scores"`
			}
			return printResult(cmd, result{Fallback: eng.model.Fallback(), Scores: scores}, func() {
				if eng.model.Fallback() {
					fmt.Println("(untrained model - scores are uncalibrated)")
				}
				fmt.Printf("%-16s %8s %8s %8s %8s %8s\n",
					"OBJECT", "THREAT", "LATENT", "UNCERT", "PROX", "SIZE")
				for _, s := range scores {
					fmt.Printf("%-16s %8.4f %8.4f %8.4f %8.4f %8.4f\n",
						s.ObjectID, s.Combined, s.LatentRisk, s.Uncertainty, s.Proximity, s.SizeProxy)
				}
			})
		},
	}

	cmd.Flags().Int("top", 10, "Number of objects to show (0 = all)")
	cmd.Flags().String("db", "", "Persist the ranking to this sqlite watchlist")
	return cmd
}
