package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/trajnet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	tcn := nn.NewSequential[B](
//	    nn.NewBatchNorm2D(64, backend),
//	    nn.NewPReLU(backend),
//	    nn.NewConv2D(64, 64, [2]int{3, 1}, [2]int{1, 1}, [2]int{1, 0}, true, rng, backend),
//	)
//
// State dict keys are prefixed with the module index ("2.weight").
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index i.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.modules) {
		panic(fmt.Sprintf("sequential: index %d out of range [0, %d)", i, len(s.modules)))
	}
	return s.modules[i]
}

// SetTraining propagates the mode to every module that has one.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		if t, ok := module.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// StateDict collects the state of every stateful module under its index.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		if st, ok := module.(Stateful); ok {
			PrefixStateDict(stateDict, strconv.Itoa(i), st.StateDict())
		}
	}
	return stateDict
}

// LoadStateDict restores every stateful module from its indexed entries.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		st, ok := module.(Stateful)
		if !ok {
			continue
		}
		if err := st.LoadStateDict(ScopeStateDict(stateDict, strconv.Itoa(i))); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}
