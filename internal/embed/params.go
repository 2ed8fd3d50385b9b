package embed

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/atis-project/atis/internal/models"
)

// defaultInitSeed seeds the deterministic fallback parameter set. Fixed so
// that degraded-mode output is reproducible across processes.
const defaultInitSeed = 42

// Params is the trained parameter set for the embedding model, serialized as
// JSON. All matrices are row-major [rows][cols].
type Params struct {
	Hidden int `json:"hidden"`
	Latent int `json:"latent"`

	// Input projection: F -> hidden
	InProj [][]float64 `json:"in_proj"`
	InBias []float64   `json:"in_bias"`

	// Attention block 1: hidden -> hidden, with layer norm
	Attn1W [][]float64 `json:"attn1_w"`
	Norm1G []float64   `json:"norm1_gain"`
	Norm1B []float64   `json:"norm1_bias"`

	// Attention block 2: hidden -> latent, with layer norm
	Attn2W [][]float64 `json:"attn2_w"`
	Norm2G []float64   `json:"norm2_gain"`
	Norm2B []float64   `json:"norm2_bias"`

	// Output heads: latent -> latent
	MuW    [][]float64 `json:"mu_w"`
	MuB    []float64   `json:"mu_b"`
	SigmaW [][]float64 `json:"sigma_w"`
	SigmaB []float64   `json:"sigma_b"`

	// Optional hazard head: latent -> scalar logit
	LogitW []float64 `json:"logit_w"`
	LogitB float64   `json:"logit_b"`
}

// LoadError reports a parameter blob that could not be loaded. Callers that
// receive one may construct the model with nil params to run in fallback
// mode instead of failing the whole request path.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model params %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadParams reads and validates a parameter set from a JSON file. Any
// failure comes back as a *LoadError.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if err := p.validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &p, nil
}

// Save writes the parameter set as JSON.
func (p *Params) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write params: %w", err)
	}
	return nil
}

func (p *Params) validate() error {
	checkMat := func(name string, m [][]float64, rows, cols int) error {
		if len(m) != rows {
			return fmt.Errorf("%s: %d rows, want %d", name, len(m), rows)
		}
		for i, r := range m {
			if len(r) != cols {
				return fmt.Errorf("%s: row %d has %d cols, want %d", name, i, len(r), cols)
			}
		}
		return nil
	}
	checkVec := func(name string, v []float64, n int) error {
		if len(v) != n {
			return fmt.Errorf("%s: length %d, want %d", name, len(v), n)
		}
		return nil
	}

	if p.Hidden <= 0 || p.Latent <= 0 {
		return fmt.Errorf("non-positive dims hidden=%d latent=%d", p.Hidden, p.Latent)
	}
	f, h, d := models.FeatureCount, p.Hidden, p.Latent
	for _, err := range []error{
		checkMat("in_proj", p.InProj, f, h),
		checkVec("in_bias", p.InBias, h),
		checkMat("attn1_w", p.Attn1W, h, h),
		checkVec("norm1_gain", p.Norm1G, h),
		checkVec("norm1_bias", p.Norm1B, h),
		checkMat("attn2_w", p.Attn2W, h, d),
		checkVec("norm2_gain", p.Norm2G, d),
		checkVec("norm2_bias", p.Norm2B, d),
		checkMat("mu_w", p.MuW, d, d),
		checkVec("mu_b", p.MuB, d),
		checkMat("sigma_w", p.SigmaW, d, d),
		checkVec("sigma_b", p.SigmaB, d),
		checkVec("logit_w", p.LogitW, d),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// defaultParams builds the deterministic untrained parameter set used when no
// trained blob is available. Xavier-uniform weights, identity layer norms.
func defaultParams(cfg ModelConfig) *Params {
	rng := rand.New(rand.NewSource(defaultInitSeed))

	xavier := func(rows, cols int) [][]float64 {
		scale := xavierScale(rows, cols)
		m := make([][]float64, rows)
		for i := range m {
			m[i] = make([]float64, cols)
			for j := range m[i] {
				m[i][j] = (rng.Float64()*2 - 1) * scale
			}
		}
		return m
	}
	zeros := func(n int) []float64 { return make([]float64, n) }
	ones := func(n int) []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = 1
		}
		return v
	}

	f, h, d := models.FeatureCount, cfg.Hidden, cfg.Latent
	p := &Params{
		Hidden: h,
		Latent: d,
		InProj: xavier(f, h),
		InBias: zeros(h),
		Attn1W: xavier(h, h),
		Norm1G: ones(h),
		Norm1B: zeros(h),
		Attn2W: xavier(h, d),
		Norm2G: ones(d),
		Norm2B: zeros(d),
		MuW:    xavier(d, d),
		MuB:    zeros(d),
		SigmaW: xavier(d, d),
		SigmaB: zeros(d),
		LogitW: make([]float64, d),
	}
	scale := xavierScale(d, 1)
	for i := range p.LogitW {
		p.LogitW[i] = (rng.Float64()*2 - 1) * scale
	}
	return p
}

func xavierScale(fanIn, fanOut int) float64 {
	return math.Sqrt(6.0 / float64(fanIn+fanOut))
}
