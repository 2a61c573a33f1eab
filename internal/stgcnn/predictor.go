package stgcnn

import (
	"fmt"
	"math/rand"
	"strconv"

	"k8s.io/klog/v2"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

// TrajectoryPredictor maps observed positions and per-step interaction
// graphs to per-node distribution parameters over the prediction horizon.
//
//	v [batch, T_obs, N, 2]
//	  -> ReLU(Linear 2->feat), permute      [batch, feat, T_obs, N]
//	  -> n_stgcnn SpatioTemporalBlocks       [batch, out, T_obs, N]
//	  -> swap channel/time                   [batch, T_obs, out, N]
//	  -> PReLU(Conv 3x3 T_obs->T_pred)       [batch, T_pred, out, N]
//	  -> n_txpcnn-1 x (v = PReLU(Conv 3x3 T_pred->T_pred)(v) + v)
//	  -> swap back                           [batch, out, T_pred, N]
//
// Forward is safe for concurrent use in evaluation mode. Training mode
// updates batch-norm statistics and draws dropout masks, so calls must be
// serialized.
type TrajectoryPredictor[B tensor.Backend] struct {
	cfg Config

	linProj *nn.Linear[B]
	relu    *nn.ReLU[B]
	blocks  []*SpatioTemporalBlock[B]
	tpcnns  []*nn.Conv2D[B]
	prelus  []*nn.PReLU[B]

	training bool
	backend  B
}

// NewTrajectoryPredictor validates cfg and builds the model. Parameters are
// initialized from a source seeded with cfg.Seed, so equal configs build
// equal models. The model starts in training mode.
func NewTrajectoryPredictor[B tensor.Backend](cfg Config, backend B) (*TrajectoryPredictor[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: reproducible init, not security sensitive

	m := &TrajectoryPredictor[B]{
		cfg:      cfg,
		linProj:  nn.NewLinear(cfg.InputFeat, cfg.FeatDim, rng, backend),
		relu:     nn.NewReLU[B](),
		training: true,
		backend:  backend,
	}

	for i := 0; i < cfg.NumBlocks; i++ {
		last := i == cfg.NumBlocks-1
		blockCfg := BlockConfig{
			InChannels:    cfg.FeatDim,
			OutChannels:   cfg.FeatDim,
			KernelSize:    cfg.KernelSize,
			SpatialKernel: cfg.K(),
			Stride:        1,
			Dropout:       cfg.Dropout,
			Residual:      cfg.Residual,
			Contraction:   cfg.Contraction,
		}
		if last {
			blockCfg.OutChannels = cfg.OutputFeat
			blockCfg.UseMDN = cfg.UseMDN
		}
		block, err := NewSpatioTemporalBlock(blockCfg, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		m.blocks = append(m.blocks, block)
	}

	for i := 0; i < cfg.NumPredConvs; i++ {
		in := cfg.PredLen
		if i == 0 {
			in = cfg.ObsLen
		}
		m.tpcnns = append(m.tpcnns, nn.NewConv2D(in, cfg.PredLen,
			[2]int{3, 3}, [2]int{1, 1}, [2]int{1, 1}, true, rng, backend))
		m.prelus = append(m.prelus, nn.NewPReLU(backend))
	}

	klog.V(1).Infof("stgcnn: built predictor blocks=%d pred_convs=%d feat=%d out=%d K=%d contraction=%s params=%d",
		cfg.NumBlocks, cfg.NumPredConvs, cfg.FeatDim, cfg.OutputFeat, cfg.K(), cfg.Contraction, m.NumParameters())
	for i, b := range m.blocks {
		klog.V(2).Infof("stgcnn: block %d in=%d out=%d residual=%s mdn=%v",
			i, b.cfg.InChannels, b.cfg.OutChannels, b.residualKind, b.cfg.UseMDN)
	}
	return m, nil
}

// Forward predicts [batch, output_feat, T_pred, N] from positions
// v [batch, T_obs, N, input_feat] and adjacency a [K, N, N]. a is returned
// unchanged.
//
// Panics with an error wrapping ErrShapeMismatch on inconsistent shapes.
func (m *TrajectoryPredictor[B]) Forward(
	v, a *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	vs := v.Shape()
	if len(vs) != 4 || vs[1] != m.cfg.ObsLen || vs[3] != m.cfg.InputFeat {
		panicShape("predictor", "expected v [batch, %d, N, %d], got %v", m.cfg.ObsLen, m.cfg.InputFeat, vs)
	}

	x := m.relu.Forward(m.linProj.Forward(v)).Transpose(0, 3, 1, 2)

	for _, block := range m.blocks {
		x, a = block.Forward(x, a)
	}

	// The prediction cascade treats time as the channel axis.
	x = x.Transpose(0, 2, 1, 3)
	if got := x.Shape()[1]; got != m.cfg.ObsLen {
		panicShape("predictor", "blocks produced %d time steps, want %d", got, m.cfg.ObsLen)
	}

	x = m.prelus[0].Forward(m.tpcnns[0].Forward(x))
	for k := 1; k < len(m.tpcnns); k++ {
		x = m.prelus[k].Forward(m.tpcnns[k].Forward(x)).Add(x)
	}

	return x.Transpose(0, 2, 1, 3), a
}

// Train switches the model to training mode.
func (m *TrajectoryPredictor[B]) Train() {
	m.SetTraining(true)
}

// Eval switches the model to evaluation mode.
func (m *TrajectoryPredictor[B]) Eval() {
	m.SetTraining(false)
}

// SetTraining sets the mode of every block.
func (m *TrajectoryPredictor[B]) SetTraining(training bool) {
	m.training = training
	for _, block := range m.blocks {
		block.SetTraining(training)
	}
}

// Training reports whether the model is in training mode.
func (m *TrajectoryPredictor[B]) Training() bool {
	return m.training
}

// Config returns the config the model was built from.
func (m *TrajectoryPredictor[B]) Config() Config {
	return m.cfg
}

// Blocks returns the spatio-temporal blocks in order.
func (m *TrajectoryPredictor[B]) Blocks() []*SpatioTemporalBlock[B] {
	return m.blocks
}

// Parameters returns all trainable parameters.
func (m *TrajectoryPredictor[B]) Parameters() []*nn.Parameter[B] {
	params := m.linProj.Parameters()
	for _, block := range m.blocks {
		params = append(params, block.Parameters()...)
	}
	for i := range m.tpcnns {
		params = append(params, m.tpcnns[i].Parameters()...)
		params = append(params, m.prelus[i].Parameters()...)
	}
	return params
}

// NumParameters returns the total number of trainable scalars.
func (m *TrajectoryPredictor[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}

func (m *TrajectoryPredictor[B]) submodules() []namedModule {
	modules := []namedModule{{"lin_proj", m.linProj}}
	for i, block := range m.blocks {
		modules = append(modules, namedModule{"st_gcns." + strconv.Itoa(i), block})
	}
	for i := range m.tpcnns {
		modules = append(modules,
			namedModule{"tpcnns." + strconv.Itoa(i), m.tpcnns[i]},
			namedModule{"prelus." + strconv.Itoa(i), m.prelus[i]},
		)
	}
	return modules
}

// StateDict returns every parameter and batch-norm buffer, keyed in the
// Social-STGCNN layout ("lin_proj.weight", "st_gcns.0.tcn.2.weight",
// "tpcnns.0.bias", "prelus.0.weight").
func (m *TrajectoryPredictor[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(m.submodules())
}

// LoadStateDict copies entries of stateDict into the model. Every key of
// StateDict must be present with the same shape; extra keys are ignored.
func (m *TrajectoryPredictor[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(stateDict, m.submodules())
}
