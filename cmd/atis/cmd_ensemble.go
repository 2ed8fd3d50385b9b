package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/ensemble"
)

func newEnsembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensemble <object-id>",
		Short: "Cross-check one object's score against heuristic sub-models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			idx, err := eng.resolve(args[0])
			if err != nil {
				return err
			}

			out, err := eng.model.Embed(eng.snap)
			if err != nil {
				return err
			}
			breakdown, err := eng.combiner.Score(out, eng.snap, idx)
			if err != nil {
				return err
			}

			features, err := eng.snap.Row(idx)
			if err != nil {
				return err
			}

			predictor := ensemble.NewPredictor(eng.cfg.PredictorConfig())
			pred, err := predictor.Predict(features, breakdown.Combined)
			if err != nil {
				return err
			}
			pred.ObjectID = args[0]

			return printResult(cmd, pred, func() {
				fmt.Printf("%s  ensemble=%.4f  agreement=%.4f  confidence=%.4f\n",
					pred.ObjectID, pred.EnsembleScore, pred.Agreement, pred.Confidence)
				for name, score := range pred.IndividualScores {
					fmt.Printf("  %-16s %.4f (weight %.2f)\n", name, score, pred.Weights[name])
				}
				if len(pred.OutlierModels) > 0 {
					fmt.Printf("  outliers: %v\n", pred.OutlierModels)
				}
				fmt.Println(pred.Recommendation)
			})
		},
	}
}
