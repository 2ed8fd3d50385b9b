package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/explain"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <object-id>",
		Short: "Attribute one object's threat score to its input features",
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

			explainer := explain.NewExplainer(eng.model, eng.combiner, eng.cfg.ExplainerConfig())
			exp, err := explainer.Explain(eng.snap, idx)
			if err != nil {
				return err
			}

			return printResult(cmd, exp, func() {
				fmt.Printf("%s  prediction=%.4f (%s)  confidence=%.4f\n",
					exp.ObjectID, exp.Prediction, exp.PredictionLabel, exp.Confidence)
				if exp.FallbackModel {
					fmt.Println("(untrained model - attribution is uncalibrated)")
				}
				fmt.Println("top features:")
				for _, f := range exp.TopFeatures {
					fmt.Printf("  %-22s %6.2f%%  (perturbation %+.5f)\n",
						f.Feature, f.Importance, exp.PerturbationValues[f.Feature])
				}
				fmt.Println(exp.ExplanationText)
			})
		},
	}
}
