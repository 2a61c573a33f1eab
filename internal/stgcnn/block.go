package stgcnn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// ResidualKind is the residual path of a SpatioTemporalBlock, fixed at
// construction.
type ResidualKind int

const (
	// ResidualZero adds nothing: the block is purely feed-forward.
	ResidualZero ResidualKind = iota
	// ResidualIdentity adds the block input unchanged.
	ResidualIdentity
	// ResidualProjection adds a 1x1 convolution (stride (s,1)) followed by
	// batch norm, matching channels and time length.
	ResidualProjection
)

// String returns the residual kind name.
func (k ResidualKind) String() string {
	switch k {
	case ResidualZero:
		return "zero"
	case ResidualIdentity:
		return "identity"
	case ResidualProjection:
		return "projection"
	default:
		return fmt.Sprintf("ResidualKind(%d)", int(k))
	}
}

// BlockConfig configures one SpatioTemporalBlock.
type BlockConfig struct {
	InChannels  int
	OutChannels int
	// KernelSize is the temporal kernel of the tcn convolution. Must be odd.
	KernelSize int
	// SpatialKernel is the adjacency depth K.
	SpatialKernel int
	// Stride applies to the time axis only. Zero means 1.
	Stride   int
	Dropout  float64
	Residual bool
	UseMDN   bool
	// Contraction defaults to ContractKernel.
	Contraction Contraction
}

func (c BlockConfig) withDefaults() BlockConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Contraction == "" {
		c.Contraction = ContractKernel
	}
	return c
}

// residualKind selects the residual path for the config.
func (c BlockConfig) residualKind() ResidualKind {
	switch {
	case !c.Residual:
		return ResidualZero
	case c.InChannels == c.OutChannels && c.Stride == 1:
		return ResidualIdentity
	default:
		return ResidualProjection
	}
}

// SpatioTemporalBlock is one graph-temporal feature transform:
//
//	res  = residual(x)
//	x, A = gcn(x, A)
//	x    = Dropout(BN(Conv_(k,1)(PReLU(BN(x))))) + res
//	x    = PReLU(x)        unless UseMDN
type SpatioTemporalBlock[B tensor.Backend] struct {
	cfg          BlockConfig
	residualKind ResidualKind

	gcn      *GraphConvolution[B]
	tcn      *nn.Sequential[B]
	residual *nn.Sequential[B] // nil unless ResidualProjection
	prelu    *nn.PReLU[B]
}

// NewSpatioTemporalBlock builds a block. An even KernelSize fails with
// ErrEvenKernel.
func NewSpatioTemporalBlock[B tensor.Backend](cfg BlockConfig, rng *rand.Rand, backend B) (*SpatioTemporalBlock[B], error) {
	cfg = cfg.withDefaults()
	if cfg.InChannels <= 0 || cfg.OutChannels <= 0 || cfg.KernelSize <= 0 || cfg.Stride <= 0 {
		return nil, fmt.Errorf("%w: block in=%d out=%d kernel=%d stride=%d",
			ErrInvalidConfig, cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Stride)
	}
	if cfg.KernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: block kernel %d", ErrEvenKernel, cfg.KernelSize)
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, cfg.Dropout)
	}

	gcn, err := NewGraphConvolution(cfg.InChannels, cfg.OutChannels, cfg.SpatialKernel, 1, cfg.Contraction, rng, backend)
	if err != nil {
		return nil, err
	}

	out := cfg.OutChannels
	tcn := nn.NewSequential[B](
		nn.NewBatchNorm2D(out, backend),
		nn.NewPReLU(backend),
		nn.NewConv2D(out, out,
			[2]int{cfg.KernelSize, 1}, [2]int{cfg.Stride, 1}, [2]int{(cfg.KernelSize - 1) / 2, 0},
			true, rng, backend),
		nn.NewBatchNorm2D(out, backend),
		nn.NewDropout[B](cfg.Dropout, rng),
	)

	block := &SpatioTemporalBlock[B]{
		cfg:          cfg,
		residualKind: cfg.residualKind(),
		gcn:          gcn,
		tcn:          tcn,
		prelu:        nn.NewPReLU(backend),
	}
	if block.residualKind == ResidualProjection {
		block.residual = nn.NewSequential[B](
			nn.NewConv2D(cfg.InChannels, out, [2]int{1, 1}, [2]int{cfg.Stride, 1}, [2]int{0, 0}, true, rng, backend),
			nn.NewBatchNorm2D(out, backend),
		)
	}
	return block, nil
}

// Forward transforms x [batch, in, T, N] with adjacency A [K, N, N] into
// [batch, out, T_out, N]. A is returned unchanged.
func (b *SpatioTemporalBlock[B]) Forward(
	x, adj *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	var res *tensor.Tensor[float32, B]
	switch b.residualKind {
	case ResidualIdentity:
		res = x
	case ResidualProjection:
		res = b.residual.Forward(x)
	}

	out, adj := b.gcn.Forward(x, adj)
	out = b.tcn.Forward(out)

	if res != nil {
		if !out.Shape().Equal(res.Shape()) {
			panicShape("st-gcn block", "residual %v does not match output %v", res.Shape(), out.Shape())
		}
		out = out.Add(res)
	}

	if !b.cfg.UseMDN {
		out = b.prelu.Forward(out)
	}
	return out, adj
}

// ResidualKind returns the residual path chosen at construction.
func (b *SpatioTemporalBlock[B]) ResidualKind() ResidualKind {
	return b.residualKind
}

// Config returns the block config with defaults applied.
func (b *SpatioTemporalBlock[B]) Config() BlockConfig {
	return b.cfg
}

// GraphConv returns the block's graph convolution.
func (b *SpatioTemporalBlock[B]) GraphConv() *GraphConvolution[B] {
	return b.gcn
}

// TemporalConv returns the block's BN-PReLU-Conv-BN-Dropout stack.
func (b *SpatioTemporalBlock[B]) TemporalConv() *nn.Sequential[B] {
	return b.tcn
}

// SetTraining switches batch norm and dropout between training and
// evaluation behavior.
func (b *SpatioTemporalBlock[B]) SetTraining(training bool) {
	b.tcn.SetTraining(training)
	if b.residual != nil {
		b.residual.SetTraining(training)
	}
}

// Parameters returns all trainable parameters.
func (b *SpatioTemporalBlock[B]) Parameters() []*nn.Parameter[B] {
	params := b.gcn.Parameters()
	params = append(params, b.tcn.Parameters()...)
	if b.residual != nil {
		params = append(params, b.residual.Parameters()...)
	}
	return append(params, b.prelu.Parameters()...)
}

// submodules lists the stateful children under their state dict prefixes.
func (b *SpatioTemporalBlock[B]) submodules() []namedModule {
	modules := []namedModule{
		{"gcn", b.gcn},
		{"tcn", b.tcn},
	}
	if b.residual != nil {
		modules = append(modules, namedModule{"residual", b.residual})
	}
	return append(modules, namedModule{"prelu", b.prelu})
}

// StateDict returns parameters and batch-norm buffers keyed as
// "gcn.conv.weight", "tcn.0.running_mean", "residual.0.weight", "prelu.weight".
func (b *SpatioTemporalBlock[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(b.submodules())
}

// LoadStateDict restores the block from StateDict-shaped entries.
func (b *SpatioTemporalBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(stateDict, b.submodules())
}
