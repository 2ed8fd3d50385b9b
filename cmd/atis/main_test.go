package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/models"
	"github.com/atis-project/atis/internal/snapshot"
	"github.com/atis-project/atis/internal/store"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "atis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML engine configuration")
	rootCmd.PersistentFlags().String("data", "", "Path to the Arrow feature snapshot")
	return rootCmd
}

// writeTestSnapshot stores a small population and returns its path.
func writeTestSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "population.arrow")

	ids := []string{"2000433", "2099942", "2101955", "2004769"}
	features := make([][]float64, len(ids))
	for i := range features {
		row := make([]float64, models.FeatureCount)
		row[models.FeatEccentricity] = 0.2 + float64(i)*0.1
		row[models.FeatSemiMajorAxis] = 1.2 + float64(i)*0.2
		row[models.FeatInclination] = 5 + float64(i)*3
		row[models.FeatPerihelionDist] = 0.3 + float64(i)*0.2
		row[models.FeatAphelionDist] = 1.8 + float64(i)*0.3
		row[models.FeatOrbitalPeriod] = 400 + float64(i)*100
		row[models.FeatMeanMotion] = 0.5
		row[models.FeatAbsoluteMagnitude] = 18 + float64(i)
		row[models.FeatDiameter] = 0.8 - float64(i)*0.15
		row[models.FeatMOID] = 0.02 + float64(i)*0.1
		features[i] = row
	}

	if err := snapshot.Write(path, ids, features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestNewScoreCmd(t *testing.T) {
	cmd := newScoreCmd()
	if cmd.Use != "score" {
		t.Errorf("Use = %q, want %q", cmd.Use, "score")
	}
}

func TestNewEnsembleCmd(t *testing.T) {
	cmd := newEnsembleCmd()
	if !strings.HasPrefix(cmd.Use, "ensemble") {
		t.Errorf("Use = %q, want ensemble prefix", cmd.Use)
	}
}

func TestNewAnomalyCmd(t *testing.T) {
	cmd := newAnomalyCmd()
	if !strings.HasPrefix(cmd.Use, "anomaly") {
		t.Errorf("Use = %q, want anomaly prefix", cmd.Use)
	}
}

func TestNewExplainCmd(t *testing.T) {
	cmd := newExplainCmd()
	if !strings.HasPrefix(cmd.Use, "explain") {
		t.Errorf("Use = %q, want explain prefix", cmd.Use)
	}
}

func TestNewWatchlistCmd(t *testing.T) {
	cmd := newWatchlistCmd()
	if cmd.Use != "watchlist" {
		t.Errorf("Use = %q, want %q", cmd.Use, "watchlist")
	}
}

func TestScoreCmd_RequiresData(t *testing.T) {
	root := newTestRootCmd()
	root.AddCommand(newScoreCmd())
	root.SetArgs([]string{"score"})

	if err := root.Execute(); err == nil {
		t.Error("expected error without --data")
	}
}

func TestScoreCmd_RunsAndPersists(t *testing.T) {
	dataPath := writeTestSnapshot(t)
	dbPath := filepath.Join(t.TempDir(), "watchlist.db")

	root := newTestRootCmd()
	root.AddCommand(newScoreCmd())
	root.SetArgs([]string{"score", "--data", dataPath, "--json", "--db", dbPath, "--top", "2"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The full ranking lands on the watchlist even when --top trims output
	wl, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer wl.Close()

	scores, err := wl.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 4 {
		t.Errorf("persisted %d scores, want 4", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Combined > scores[i-1].Combined {
			t.Errorf("watchlist not ranked at %d", i)
		}
	}
}

func TestEnsembleCmd_UnknownObject(t *testing.T) {
	dataPath := writeTestSnapshot(t)

	root := newTestRootCmd()
	root.AddCommand(newEnsembleCmd())
	root.SetArgs([]string{"ensemble", "9999999", "--data", dataPath})

	if err := root.Execute(); err == nil {
		t.Error("expected error for unknown object id")
	}
}

func TestExplainCmd_Runs(t *testing.T) {
	dataPath := writeTestSnapshot(t)
	configPath := filepath.Join(t.TempDir(), "atis.yaml")
	if err := os.WriteFile(configPath, []byte("explain:\n  samples: 2\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root := newTestRootCmd()
	root.AddCommand(newExplainCmd())
	root.SetArgs([]string{"explain", "2099942", "--data", dataPath, "--config", configPath, "--json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnomalyCmd_Runs(t *testing.T) {
	dataPath := writeTestSnapshot(t)

	root := newTestRootCmd()
	root.AddCommand(newAnomalyCmd())
	root.SetArgs([]string{"anomaly", "2000433", "--data", dataPath, "--json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWatchlistCmd_RequiresDB(t *testing.T) {
	root := newTestRootCmd()
	root.AddCommand(newWatchlistCmd())
	root.SetArgs([]string{"watchlist"})

	if err := root.Execute(); err == nil {
		t.Error("expected error without --db")
	}
}
