// Command atis scores tracked near-Earth objects: it fuses a graph embedding
// with physical proxies into a per-object threat score and explains it.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	logging.Setup(os.Stderr, slog.LevelWarn)

	rootCmd := &cobra.Command{
		Use:   "atis",
		Short: "Asteroid threat intelligence scoring",
		Long: `atis computes calibrated threat scores for tracked near-Earth objects.

It embeds each object in a similarity graph of the whole population, fuses
the embedding with physical proxies (orbital proximity, brightness-derived
size), cross-checks the result against independent heuristic scorers, flags
statistically unusual objects, and explains every score it produces.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML engine configuration")
	rootCmd.PersistentFlags().String("data", "", "Path to the Arrow feature snapshot")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log informational messages")

	rootCmd.AddCommand(
		newVersionCmd(),
		newScoreCmd(),
		newEnsembleCmd(),
		newAnomalyCmd(),
		newExplainCmd(),
		newWatchlistCmd(),
	)

	cobra.OnInitialize(func() {
		if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
			logging.Setup(os.Stderr, slog.LevelInfo)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
				return
			}
			fmt.Printf("atis version %s\n", version)
		},
	}
}

// printResult renders v as indented JSON when --json is set, otherwise calls
// the human formatter.
func printResult(cmd *cobra.Command, v any, human func()) error {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}
