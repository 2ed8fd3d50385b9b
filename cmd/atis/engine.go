package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/atis-project/atis/internal/config"
	"github.com/atis-project/atis/internal/embed"
	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/snapshot"
	"github.com/atis-project/atis/internal/threat"
)

// engine bundles the per-invocation scoring state: the loaded snapshot with
// its derived KNN graph, the embedding model, and the combiner.
type engine struct {
	cfg      config.Config
	snap     *graph.Snapshot
	model    *embed.Model
	combiner *threat.Combiner
}

// loadEngine reads the config and data snapshot named by the global flags,
// derives the similarity graph, and constructs the model. A missing or
// unloadable parameter blob degrades to fallback mode with a warning.
func loadEngine(cmd *cobra.Command) (*engine, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dataPath, _ := cmd.Flags().GetString("data")
	if dataPath == "" {
		return nil, fmt.Errorf("--data is required: path to an Arrow feature snapshot")
	}
	ids, features, err := snapshot.Read(dataPath)
	if err != nil {
		return nil, err
	}

	snap, err := graph.NewSnapshot(ids, features, nil)
	if err != nil {
		return nil, err
	}
	snap.Edges = graph.BuildKNN(snap.Standardized(), cfg.KNNConfig())

	var params *embed.Params
	if cfg.ModelParams != "" {
		params, err = embed.LoadParams(cfg.ModelParams)
		if err != nil {
			var le *embed.LoadError
			if !errors.As(err, &le) {
				return nil, err
			}
			slog.Warn("trained parameters unavailable, running degraded",
				"path", le.Path, "err", le.Err)
			params = nil
		}
	}
	model, err := embed.NewModel(embed.DefaultModelConfig(), params)
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		snap:     snap,
		model:    model,
		combiner: threat.NewCombiner(cfg.CombinerConfig()),
	}, nil
}

// resolve maps an object ID argument to its node index.
func (e *engine) resolve(objectID string) (int, error) {
	idx, err := e.snap.Index(objectID)
	if err != nil {
		return 0, fmt.Errorf("object %q not in snapshot: %w", objectID, err)
	}
	return idx, nil
}
