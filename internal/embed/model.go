// Package embed implements the graph embedding model: a two-hop attention
// network over the similarity graph that maps each object's features to a
// latent risk vector mu and a non-negative uncertainty vector sigma.
//
// The model processes the whole node set jointly; each node's output depends
// on its graph neighborhood. Parameters are read-only after construction, so
// concurrent Embed calls against one Model are safe.
package embed

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/atis-project/atis/internal/graph"
	"github.com/atis-project/atis/internal/models"
)

// ModelConfig sets the architecture dimensions.
type ModelConfig struct {
	// Hidden is the width of the intermediate representation. Default: 64.
	Hidden int

	// Latent is the embedding dimension d. Default: 32.
	Latent int
}

// DefaultModelConfig returns the dimensions of the original ATIS network.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{Hidden: 64, Latent: 32}
}

func (c ModelConfig) withDefaults() ModelConfig {
	if c.Hidden <= 0 {
		c.Hidden = 64
	}
	if c.Latent <= 0 {
		c.Latent = 32
	}
	return c
}

// Output is the joint embedding of a snapshot's node set.
type Output struct {
	// Mu is the N x d latent risk matrix
	Mu *mat.Dense

	// Sigma is the N x d uncertainty matrix, component-wise >= 0
	Sigma *mat.Dense

	// HazardLogit is the optional per-node hazard head output
	HazardLogit []float64

	// Fallback is true when the producing model ran with default
	// (untrained) parameters
	Fallback bool
}

// Separation is a diagnostic: the euclidean distance between the mu centroids
// of flagged and unflagged nodes. Returns 0 when either group is empty.
func (o *Output) Separation(flags []bool) float64 {
	n, d := o.Mu.Dims()
	if len(flags) != n {
		return 0
	}
	pos := make([]float64, d)
	neg := make([]float64, d)
	var np, nn int
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			if flags[i] {
				pos[j] += o.Mu.At(i, j)
			} else {
				neg[j] += o.Mu.At(i, j)
			}
		}
		if flags[i] {
			np++
		} else {
			nn++
		}
	}
	if np == 0 || nn == 0 {
		return 0
	}
	var dist float64
	for j := 0; j < d; j++ {
		diff := pos[j]/float64(np) - neg[j]/float64(nn)
		dist += diff * diff
	}
	return math.Sqrt(dist)
}

// Model is the graph embedding model. Immutable after construction.
type Model struct {
	cfg      ModelConfig
	fallback bool

	inProj *mat.Dense
	inBias []float64
	attn1  *mat.Dense
	norm1G []float64
	norm1B []float64
	attn2  *mat.Dense
	norm2G []float64
	norm2B []float64
	muW    *mat.Dense
	muB    []float64
	sigW   *mat.Dense
	sigB   []float64
	logitW []float64
	logitB float64
}

// NewModel builds a model from a trained parameter set. Passing nil params
// puts the model in fallback mode with a deterministic default
// initialization; callers stay operational, scores are just uncalibrated.
func NewModel(cfg ModelConfig, p *Params) (*Model, error) {
	cfg = cfg.withDefaults()

	fallback := false
	if p == nil {
		p = defaultParams(cfg)
		fallback = true
		slog.Warn("embedding model running with default parameters",
			"hidden", cfg.Hidden, "latent", cfg.Latent)
	} else {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		cfg.Hidden = p.Hidden
		cfg.Latent = p.Latent
	}

	return &Model{
		cfg:      cfg,
		fallback: fallback,
		inProj:   toDense(p.InProj),
		inBias:   p.InBias,
		attn1:    toDense(p.Attn1W),
		norm1G:   p.Norm1G,
		norm1B:   p.Norm1B,
		attn2:    toDense(p.Attn2W),
		norm2G:   p.Norm2G,
		norm2B:   p.Norm2B,
		muW:      toDense(p.MuW),
		muB:      p.MuB,
		sigW:     toDense(p.SigmaW),
		sigB:     p.SigmaB,
		logitW:   p.LogitW,
		logitB:   p.LogitB,
	}, nil
}

// Fallback reports whether the model is running with default parameters.
func (m *Model) Fallback() bool { return m.fallback }

// LatentDim returns the embedding dimension d.
func (m *Model) LatentDim() int { return m.cfg.Latent }

// Embed runs the full node set through the network.
//
// Pipeline: input projection with ReLU, two neighbor-aggregation blocks
// (block 1 with a residual connection), layer norm and ELU after each block,
// then the mu head and the softplus sigma head. Sigma is therefore
// component-wise non-negative for any input.
func (m *Model) Embed(snap *graph.Snapshot) (*Output, error) {
	n, f := snap.Features.Dims()
	if f != models.FeatureCount {
		return nil, fmt.Errorf("%w: feature width %d, want %d",
			graph.ErrShape, f, models.FeatureCount)
	}

	neighbors := adjacency(n, snap.Edges)

	// Input projection
	h0 := mat.NewDense(n, m.cfg.Hidden, nil)
	h0.Mul(snap.Features, m.inProj)
	addBias(h0, m.inBias)
	apply(h0, relu)

	// Block 1: aggregate, project, residual, norm, ELU
	z1 := mat.NewDense(n, m.cfg.Hidden, nil)
	z1.Mul(aggregate(h0, neighbors), m.attn1)
	z1.Add(z1, h0)
	layerNorm(z1, m.norm1G, m.norm1B)
	apply(z1, elu)

	// Block 2: aggregate, project, norm, ELU
	z2 := mat.NewDense(n, m.cfg.Latent, nil)
	z2.Mul(aggregate(z1, neighbors), m.attn2)
	layerNorm(z2, m.norm2G, m.norm2B)
	apply(z2, elu)

	// Output heads
	mu := mat.NewDense(n, m.cfg.Latent, nil)
	mu.Mul(z2, m.muW)
	addBias(mu, m.muB)

	sigma := mat.NewDense(n, m.cfg.Latent, nil)
	sigma.Mul(z2, m.sigW)
	addBias(sigma, m.sigB)
	apply(sigma, softplus)

	// Layer norms bound the intermediate scale, but extreme inputs can
	// still overflow the input projection; scrub rather than propagate.
	apply(mu, finiteOrZero)
	apply(sigma, finiteOrZero)

	logit := make([]float64, n)
	for i := 0; i < n; i++ {
		v := m.logitB
		for j := 0; j < m.cfg.Latent; j++ {
			v += mu.At(i, j) * m.logitW[j]
		}
		logit[i] = finiteOrZero(v)
	}

	return &Output{Mu: mu, Sigma: sigma, HazardLogit: logit, Fallback: m.fallback}, nil
}

// toDense copies a row-major parameter matrix into a gonum Dense.
func toDense(rows [][]float64) *mat.Dense {
	r := len(rows)
	if r == 0 {
		return &mat.Dense{}
	}
	c := len(rows[0])
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

// adjacency builds per-node neighbor lists including the node itself, so a
// node with no edges still aggregates its own representation.
func adjacency(n int, edges []graph.Edge) [][]int {
	adj := make([][]int, n)
	for i := range adj {
		adj[i] = []int{i}
	}
	for _, e := range edges {
		adj[e.Src] = append(adj[e.Src], e.Dst)
	}
	return adj
}

// aggregate mean-pools each node's neighborhood rows.
func aggregate(h *mat.Dense, neighbors [][]int) *mat.Dense {
	n, d := h.Dims()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		inv := 1.0 / float64(len(neighbors[i]))
		for _, j := range neighbors[i] {
			for c := 0; c < d; c++ {
				out.Set(i, c, out.At(i, c)+h.At(j, c)*inv)
			}
		}
	}
	return out
}

// layerNorm normalizes each row to mean 0 / std 1, then applies gain and bias.
func layerNorm(m *mat.Dense, gain, bias []float64) {
	n, d := m.Dims()
	for i := 0; i < n; i++ {
		var mean float64
		for j := 0; j < d; j++ {
			mean += m.At(i, j)
		}
		mean /= float64(d)
		var variance float64
		for j := 0; j < d; j++ {
			diff := m.At(i, j) - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance/float64(d)) + 1e-8
		for j := 0; j < d; j++ {
			m.Set(i, j, (m.At(i, j)-mean)/std*gain[j]+bias[j])
		}
	}
}

func addBias(m *mat.Dense, bias []float64) {
	n, d := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			m.Set(i, j, m.At(i, j)+bias[j])
		}
	}
}

func apply(m *mat.Dense, fn func(float64) float64) {
	n, d := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			m.Set(i, j, fn(m.At(i, j)))
		}
	}
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func elu(x float64) float64 {
	if x < 0 {
		return math.Exp(x) - 1
	}
	return x
}

// softplus is log(1 + e^x), computed without overflow for large x.
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	if x < -30 {
		return math.Exp(x)
	}
	return math.Log1p(math.Exp(x))
}

func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
