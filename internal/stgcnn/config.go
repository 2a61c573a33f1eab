package stgcnn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Contraction selects how GraphConvolution combines features with the
// adjacency tensor.
type Contraction string

const (
	// ContractKernel splits the convolution output into K channel groups and
	// sums over the K adjacency slices: x'[b,c,t,w] = Σ_k Σ_v y[b,k,c,t,v] A[k,v,w].
	ContractKernel Contraction = "kernel"

	// ContractTime pairs time step t with adjacency slice t:
	// x'[b,c,t,w] = Σ_v y[b,c,t,v] A[t,v,w]. Requires K == T.
	ContractTime Contraction = "time"
)

// Valid reports whether c names a known contraction mode.
func (c Contraction) Valid() bool {
	return c == ContractKernel || c == ContractTime
}

// Config holds the hyperparameters of a TrajectoryPredictor.
type Config struct {
	// NumBlocks is the number of spatio-temporal blocks (n_stgcnn).
	NumBlocks int `yaml:"n_stgcnn"`
	// NumPredConvs is the length of the prediction-conv cascade (n_txpcnn).
	NumPredConvs int `yaml:"n_txpcnn"`

	InputFeat  int `yaml:"input_feat"`
	FeatDim    int `yaml:"feat_dim"`
	OutputFeat int `yaml:"output_feat"`

	ObsLen  int `yaml:"obs_len"`
	PredLen int `yaml:"pred_len"`

	// KernelSize is the temporal kernel of each block. Must be odd.
	KernelSize int `yaml:"kernel_size"`
	// SpatialKernel is the adjacency depth K. Zero means ObsLen.
	SpatialKernel int `yaml:"spatial_kernel"`

	Dropout  float64 `yaml:"dropout"`
	Residual bool    `yaml:"residual"`
	// UseMDN drops the trailing PReLU of the last block so that its outputs
	// stay unconstrained distribution parameters.
	UseMDN bool `yaml:"use_mdn"`

	Contraction Contraction `yaml:"contraction"`

	// Seed drives parameter initialization and dropout masks.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the Social-STGCNN layout: one block, one prediction
// conv, 8 observed and 12 predicted steps, 5 bivariate outputs.
func DefaultConfig() Config {
	return Config{
		NumBlocks:    1,
		NumPredConvs: 1,
		InputFeat:    2,
		FeatDim:      64,
		OutputFeat:   5,
		ObsLen:       8,
		PredLen:      12,
		KernelSize:   3,
		Dropout:      0,
		Residual:     true,
		UseMDN:       false,
		Contraction:  ContractKernel,
		Seed:         0,
	}
}

// K returns the effective spatial kernel size.
func (c Config) K() int {
	if c.SpatialKernel == 0 {
		return c.ObsLen
	}
	return c.SpatialKernel
}

// Validate checks the config once, before any layer is built.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"n_stgcnn", c.NumBlocks},
		{"n_txpcnn", c.NumPredConvs},
		{"input_feat", c.InputFeat},
		{"feat_dim", c.FeatDim},
		{"output_feat", c.OutputFeat},
		{"obs_len", c.ObsLen},
		{"pred_len", c.PredLen},
		{"kernel_size", c.KernelSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel_size %d", ErrEvenKernel, c.KernelSize)
	}
	if c.SpatialKernel < 0 {
		return fmt.Errorf("%w: spatial_kernel must be non-negative, got %d", ErrInvalidConfig, c.SpatialKernel)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, c.Dropout)
	}
	if !c.Contraction.Valid() {
		return fmt.Errorf("%w: unknown contraction %q", ErrInvalidConfig, c.Contraction)
	}
	if c.Contraction == ContractTime && c.K() != c.ObsLen {
		return fmt.Errorf("%w: time contraction needs spatial_kernel == obs_len, got %d != %d",
			ErrInvalidConfig, c.K(), c.ObsLen)
	}
	return nil
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values; unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML config from r on top of DefaultConfig and
// validates the result.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
