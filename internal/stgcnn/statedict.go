package stgcnn

import (
	"fmt"

	"github.com/born-ml/trajnet/internal/nn"
	"github.com/born-ml/trajnet/internal/tensor"
)

type namedModule struct {
	prefix string
	module nn.Stateful
}

func collectStateDict(modules []namedModule) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, m := range modules {
		nn.PrefixStateDict(stateDict, m.prefix, m.module.StateDict())
	}
	return stateDict
}

func loadStateDict(stateDict map[string]*tensor.RawTensor, modules []namedModule) error {
	for _, m := range modules {
		if err := m.module.LoadStateDict(nn.ScopeStateDict(stateDict, m.prefix)); err != nil {
			return fmt.Errorf("%s: %w", m.prefix, err)
		}
	}
	return nil
}
