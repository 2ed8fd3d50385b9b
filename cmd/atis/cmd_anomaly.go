package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/anomaly"
)

func newAnomalyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "anomaly <object-id>",
		Short: "Check one object against the population for unusual features",
		Long: `Anomaly fits population statistics over the snapshot, then scores the
named object with three independent signals: isolation forest, maximum
z-score, and contextual combination rules.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			idx, err := eng.resolve(args[0])
			if err != nil {
				return err
			}

			n := eng.snap.Len()
			rows := make([][]float64, n)
			for i := 0; i < n; i++ {
				rows[i], err = eng.snap.Row(i)
				if err != nil {
					return err
				}
			}

			detector := anomaly.NewDetector(eng.cfg.DetectorConfig())
			if err := detector.Fit(rows); err != nil {
				return err
			}

			report, err := detector.Detect(rows[idx])
			if err != nil {
				return err
			}
			report.ObjectID = args[0]

			return printResult(cmd, report, func() {
				fmt.Printf("%s  score=%.4f  severity=%s  anomalous=%v\n",
					report.ObjectID, report.Score, report.Severity, report.IsAnomalous)
				for name, score := range report.IndividualScores {
					fmt.Printf("  %-12s %.4f\n", name, score)
				}
				for _, f := range report.AnomalousFeatures {
					fmt.Printf("  %s: z=%.2f (%s, %s)\n", f.Feature, f.ZScore, f.Direction, f.Comparison)
				}
				fmt.Println(report.Explanation)
				for _, r := range report.Recommendations {
					fmt.Println("  - " + r)
				}
			})
		},
	}
}
