// Package config loads the engine configuration from YAML, overlaying the
// documented defaults. Every numeric knob here is an empirically chosen
// constant from the original system; the file exists to override them, not
// to re-derive them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/atis-project/atis/internal/anomaly"
	"github.com/atis-project/atis/internal/ensemble"
	"github.com/atis-project/atis/internal/explain"
	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/threat"
)

// Config is the full engine configuration.
type Config struct {
	// ModelParams is the path to the trained embedding parameters.
	// Empty or unloadable means fallback mode, not failure.
	ModelParams string `yaml:"model_params"`

	Graph struct {
		K int `yaml:"k"`
	} `yaml:"graph"`

	Combiner struct {
		Latent      float64 `yaml:"latent"`
		Uncertainty float64 `yaml:"uncertainty"`
		Proximity   float64 `yaml:"proximity"`
		Size        float64 `yaml:"size"`
	} `yaml:"combiner"`

	Ensemble struct {
		Graph       float64 `yaml:"graph"`
		Proximity   float64 `yaml:"proximity"`
		Interaction float64 `yaml:"interaction"`
		HazardScale float64 `yaml:"hazard_scale"`
	} `yaml:"ensemble"`

	Anomaly struct {
		Trees      int   `yaml:"trees"`
		SampleSize int   `yaml:"sample_size"`
		Seed       int64 `yaml:"seed"`
	} `yaml:"anomaly"`

	Explain struct {
		Samples int   `yaml:"samples"`
		Seed    int64 `yaml:"seed"`
	} `yaml:"explain"`
}

// Default returns the configuration mirroring the original constants.
func Default() Config {
	var c Config
	c.Graph.K = 5

	cc := threat.DefaultCombinerConfig()
	c.Combiner.Latent = cc.LatentWeight
	c.Combiner.Uncertainty = cc.UncertaintyWeight
	c.Combiner.Proximity = cc.ProximityWeight
	c.Combiner.Size = cc.SizeWeight

	pc := ensemble.DefaultPredictorConfig()
	c.Ensemble.Graph = pc.GraphWeight
	c.Ensemble.Proximity = pc.ProximityWeight
	c.Ensemble.Interaction = pc.InteractionWeight
	c.Ensemble.HazardScale = pc.HazardScaleWeight

	dc := anomaly.DefaultDetectorConfig()
	c.Anomaly.Trees = dc.Trees
	c.Anomaly.SampleSize = dc.SampleSize
	c.Anomaly.Seed = dc.Seed

	ec := explain.DefaultExplainerConfig()
	c.Explain.Samples = ec.Samples
	c.Explain.Seed = ec.Seed

	return c
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// KNNConfig returns the similarity-graph settings.
func (c Config) KNNConfig() graph.KNNConfig {
	return graph.KNNConfig{K: c.Graph.K}
}

// CombinerConfig returns the threat fusion weights.
func (c Config) CombinerConfig() threat.CombinerConfig {
	return threat.CombinerConfig{
		LatentWeight:      c.Combiner.Latent,
		UncertaintyWeight: c.Combiner.Uncertainty,
		ProximityWeight:   c.Combiner.Proximity,
		SizeWeight:        c.Combiner.Size,
	}
}

// PredictorConfig returns the ensemble weights.
func (c Config) PredictorConfig() ensemble.PredictorConfig {
	return ensemble.PredictorConfig{
		GraphWeight:       c.Ensemble.Graph,
		ProximityWeight:   c.Ensemble.Proximity,
		InteractionWeight: c.Ensemble.Interaction,
		HazardScaleWeight: c.Ensemble.HazardScale,
	}
}

// DetectorConfig returns the anomaly detector settings.
func (c Config) DetectorConfig() anomaly.DetectorConfig {
	dc := anomaly.DefaultDetectorConfig()
	dc.Trees = c.Anomaly.Trees
	dc.SampleSize = c.Anomaly.SampleSize
	dc.Seed = c.Anomaly.Seed
	return dc
}

// ExplainerConfig returns the attribution settings.
func (c Config) ExplainerConfig() explain.ExplainerConfig {
	ec := explain.DefaultExplainerConfig()
	ec.Samples = c.Explain.Samples
	ec.Seed = c.Explain.Seed
	return ec
}
